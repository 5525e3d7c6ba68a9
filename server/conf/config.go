package conf

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/**
user		= mysql
pid-file	= /var/run/mysqld/mysqld.pid
socket		= /var/run/mysqld/mysqld.sock
port		= 3307
bind-address	= 0.0.0.0
*/
type Cfg struct {
	Raw         *ini.File
	User        string
	BindAddress string
	Port        int
	AppName     string
}

// NewCfg returns a Cfg already usable without a config file: every field a
// caller can read has a sane default.
func NewCfg() *Cfg {
	return &Cfg{
		Raw:         ini.Empty(),
		User:        "mysql",
		BindAddress: "127.0.0.1",
		Port:        3308,
	}
}

// Load overlays an optional my.ini-style [mysqld] section's bind-address and
// port onto cfg's defaults. A missing or unspecified ConfigPath is not an
// error: cfg.BindAddress/cfg.Port simply stay at their NewCfg defaults, so
// the server is startable with zero configuration.
func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)

	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		fmt.Println("未找到配置文件，使用默认监听地址与端口:", err)
		return cfg
	}
	cfg.Raw = iniFile
	cfg.parseMysqldCfg(cfg.Raw.Section("mysqld"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}
	ConfigPath, _ = filepath.Abs(".")
}

// parseMysqldCfg reads bind-address/port, the only settings this server
// consults; everything else the original [mysqld] section carried (basedir,
// datadir, session limits) belonged to a transport this tree no longer has.
func (cfg *Cfg) parseMysqldCfg(section *ini.Section) *Cfg {
	bindAddress := section.Key("bind-address").MustString(cfg.BindAddress)
	if ip := net.ParseIP(bindAddress); ip == nil {
		fmt.Printf("配置文件中的 bind-address %q 不是合法 IP，使用默认值 %s\n", bindAddress, cfg.BindAddress)
	} else {
		cfg.BindAddress = bindAddress
	}
	cfg.Port = section.Key("port").MustInt(cfg.Port)
	return cfg
}

// loadConfiguration loads the ini file at args.ConfigPath, when one was
// given and exists. Any other case (empty path, missing file) is reported
// to the caller as an error so Load can fall back to defaults rather than
// abort the process.
func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	if args.ConfigPath == "" {
		return nil, fmt.Errorf("no -configPath given")
	}
	if _, err := os.Stat(args.ConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %q does not exist", args.ConfigPath)
	}
	return ini.Load(args.ConfigPath)
}
