package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/**
基本配置项:
basedir		= /var/lib/dockbase
datadir		= data
data-file	= dockbase.db
page-capacity	= 16
replacer-frames	= 256
log-level	= info
*/
type Cfg struct {
	Raw     *ini.File
	BaseDir string
	DataDir string
	AppName string

	// 数据文件名，日志文件以同名主干加.log后缀
	DataFileName string

	// 配置的数据文件初始容量(页数)。只被读取和校验，DiskManager不使用它，
	// 数据文件总是以common.DEFAULT_PAGE_CAPACITY起步
	PageCapacity int

	// 配置的替换器帧数。只被读取和校验，启动流程不创建替换器
	ReplacerFrames int

	LogLevel string
	LogInfos string
	LogError string
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:            ini.Empty(),
		AppName:        "dockbase",
		BaseDir:        ".",
		DataDir:        "data",
		DataFileName:   "dockbase.db",
		PageCapacity:   16,
		ReplacerFrames: 256,
		LogLevel:       "info",
	}
}

func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)
	if args.ConfigPath == "" {
		// 没有配置文件时使用默认值
		return cfg
	}
	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		fmt.Println("加载配置文件时有异常", err)
		os.Exit(1)
	}
	cfg.Raw = iniFile

	cfg.parseDockbaseCfg(cfg.Raw.Section("dockbase"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) parseDockbaseCfg(section *ini.Section) *Cfg {
	cfg.BaseDir = section.Key("basedir").MustString(cfg.BaseDir)
	cfg.DataDir = section.Key("datadir").MustString(cfg.DataDir)
	cfg.DataFileName = section.Key("data-file").MustString(cfg.DataFileName)

	cfg.PageCapacity = section.Key("page-capacity").MustInt(cfg.PageCapacity)
	if cfg.PageCapacity <= 0 {
		fmt.Println("page-capacity配置异常，必须为正数")
		os.Exit(1)
	}
	cfg.ReplacerFrames = section.Key("replacer-frames").MustInt(cfg.ReplacerFrames)
	if cfg.ReplacerFrames <= 0 {
		fmt.Println("replacer-frames配置异常，必须为正数")
		os.Exit(1)
	}

	cfg.LogLevel = section.Key("log-level").MustString(cfg.LogLevel)
	cfg.LogInfos = section.Key("log-info-path").MustString("")
	cfg.LogError = section.Key("log-error-path").MustString("")
	return cfg
}

// DataFilePath 数据文件的完整路径
func (cfg *Cfg) DataFilePath() string {
	return filepath.Join(cfg.BaseDir, cfg.DataDir, cfg.DataFileName)
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	configFile := args.ConfigPath

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "config file %s not found", configFile)
	}

	parsedFile, err := ini.Load(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", configFile)
	}
	return parsedFile, nil
}
