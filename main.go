package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/dockbase/logger"
	"github.com/zhukovaskychina/dockbase/server/conf"
	"github.com/zhukovaskychina/dockbase/server/storage/disk"
)

const help = `
******************************************************************************************
*Dockbase 页式存储引擎
*帮助:
*1. -- help
*2. -- configPath   指定dockbase.ini配置文件
******************************************************************************************
`

func main() {
	var configPath string
	var showHelp bool
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.BoolVar(&showHelp, "help", false, "显示帮助")
	flag.Parse()

	if showHelp {
		fmt.Println(help)
		return
	}

	args := &conf.CommandLineArgs{
		ConfigPath: configPath,
	}

	config := conf.NewCfg().Load(args)

	logConfig := logger.LogConfig{
		ErrorLogPath: config.LogError,
		InfoLogPath:  config.LogInfos,
		LogLevel:     config.LogLevel,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info("Dockbase storage core starting...")

	dataFilePath := config.DataFilePath()
	if err := os.MkdirAll(filepath.Dir(dataFilePath), 0755); err != nil {
		logger.Fatalf("Failed to create data dir: %v", err)
	}

	diskManager, err := disk.NewDiskManager(dataFilePath)
	if err != nil {
		logger.Fatalf("Failed to open disk manager: %v", err)
	}

	diskScheduler := disk.NewDiskScheduler(diskManager)
	logger.Infof("Storage core ready, data file %s, log file %s", dataFilePath, diskManager.LogFileName())

	diskScheduler.ShutDown()
	if err := diskManager.ShutDown(); err != nil {
		logger.Errorf("Disk manager shutdown failed: %v", err)
	}
	logger.Info("Storage core stopped")
}
