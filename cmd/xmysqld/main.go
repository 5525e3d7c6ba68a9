package main

import (
	"crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"

	"github.com/zhukovaskychina/xmysql-server/logger"
	"github.com/zhukovaskychina/xmysql-server/server/auth"
	"github.com/zhukovaskychina/xmysql-server/server/conf"
	netsrv "github.com/zhukovaskychina/xmysql-server/server/net"
	"github.com/zhukovaskychina/xmysql-server/server/session"
)

const help = `
******************************************************************************************

 __   ____  __        _____  ____  _          _____ ______ _______      ________ _____
 \ \ / /  \/  |      / ____|/ __ \| |        / ____|  ____|  __ \ \    / /  ____|  __ \
  \ V /| \  / |_   _| (___ | |  | | |  _____| (___ | |__  | |__) \ \  / /| |__  | |__) |
   > < | |\/| | | | |\___ \| |  | | | |______\___ \|  __| |  _  / \ \/ / |  __| |  _  /
  / . \| |  | | |_| |____) | |__| | |____    ____) | |____| | \ \  \  /  | |____| | \ \
 /_/ \_\_|  |_|\__, |_____/ \___\_\______|  |_____/|______|_|  \_\  \/   |______|_|  \_\
                __/ |
               |___/
******************************************************************************************
*帮助:
*1. -- help
*2. -- configPath   指定my.ini配置文件(可选，省略时使用默认监听地址与端口)
******************************************************************************************
`

func main() {
	fmt.Println("Starting XMySQL Server...")

	var configPath string
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.Parse()

	args := &conf.CommandLineArgs{ConfigPath: configPath}
	config := conf.NewCfg().Load(args)

	if err := logger.InitLogger(logger.LogConfig{LogLevel: "info"}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logger.Info("XMySQL Server starting...")

	identity := defaultIdentity()
	factory := session.FactoryFunc(func() session.Session {
		return session.NewDemoSession()
	})

	serverID := randomServerID()
	srv := netsrv.NewServer(serverID, identity, factory)
	// srv.AdminVars defaults to admin.DefaultVars(); every accepted
	// connection wraps its session in the admin layer unconditionally.

	addr := fmt.Sprintf("%s:%d", config.BindAddress, config.Port)
	logger.Infof("listening on %s (server id %d)", addr, serverID)
	if err := srv.ListenAndServe(addr); err != nil {
		logger.Errorf("server exited: %s", err.Error())
		panic(err)
	}
}

// defaultIdentity wires a small demo account table: a mysql_native_password
// account, a trusted passwordless one, and one checked in the clear by a
// plugin that accepts the username as the password, matching the usernames
// the auth engine's own tests drive their scenarios with.
func defaultIdentity() *auth.StaticIdentityProvider {
	provider := auth.NewStaticIdentityProvider()
	provider.AddUser("levon_helm", "the_weight")
	provider.AddTrustedUser("rick_danko")
	provider.AddClearPasswordPlugin("test_plugin", func(username, password string) bool {
		return password == username
	})
	provider.AddClearPasswordUser("nazareth", "test_plugin")
	return provider
}

func randomServerID() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	id := binary.BigEndian.Uint16(b[:])
	if id == 0 {
		id = 1
	}
	return id
}
