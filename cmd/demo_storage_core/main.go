package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/dockbase/logger"
	"github.com/zhukovaskychina/dockbase/server/buffer_pool"
	"github.com/zhukovaskychina/dockbase/server/common"
	"github.com/zhukovaskychina/dockbase/server/storage/disk"
	"github.com/zhukovaskychina/dockbase/util"
)

func main() {
	fmt.Println("=== Dockbase 存储引擎核心演示 ===")
	fmt.Println()

	logger.InitLogger(logger.LogConfig{LogLevel: "debug"})

	// 创建临时演示目录
	demoDir := "demo_storage_core_data"
	os.RemoveAll(demoDir)
	os.MkdirAll(demoDir, 0755)
	defer func() {
		fmt.Println("\n清理演示数据...")
		os.RemoveAll(demoDir)
	}()

	diskManager, err := disk.NewDiskManager(filepath.Join(demoDir, "dockbase.db"))
	if err != nil {
		fmt.Println("创建磁盘管理器失败:", err)
		return
	}

	// 1. 页面写入与读取
	fmt.Println("1. 页面写入与读取")
	pageData := make([]byte, common.PAGE_SIZE)
	copy(pageData, "hello dockbase")
	if err := diskManager.WritePage(10, pageData); err != nil {
		fmt.Println("写入失败:", err)
		return
	}
	readBuf := make([]byte, common.PAGE_SIZE)
	if err := diskManager.ReadPage(10, readBuf); err != nil {
		fmt.Println("读取失败:", err)
		return
	}
	fmt.Printf("   page 10 -> %q, num_writes=%d\n", readBuf[:14], diskManager.NumWrites())

	// 2. 删除与槽位复用
	fmt.Println("2. 删除与槽位复用")
	diskManager.DeletePage(10)
	diskManager.WritePage(11, pageData)
	fmt.Printf("   page_count=%d free_slots=%d num_deletes=%d\n",
		diskManager.PageCount(), diskManager.FreeSlotCount(), diskManager.NumDeletes())

	// 3. 日志追加与读取
	fmt.Println("3. 日志追加与读取")
	diskManager.WriteLog([]byte("first_log_entry"))
	diskManager.WriteLog([]byte("second_entry"))
	logBuf := make([]byte, 15)
	found, _ := diskManager.ReadLog(logBuf, 0)
	logSize, _ := util.FileSize(diskManager.LogFileName())
	fmt.Printf("   read_log(0) found=%v content=%q num_flushes=%d log_size=%d\n",
		found, logBuf, diskManager.NumFlushes(), logSize)

	// 4. 通过调度器做异步读写
	fmt.Println("4. 磁盘调度器")
	scheduler := disk.NewDiskScheduler(diskManager)
	writeDone := make(chan bool, 1)
	readDone := make(chan bool, 1)
	writeData := make([]byte, common.PAGE_SIZE)
	copy(writeData, "scheduled write")
	readData := make([]byte, common.PAGE_SIZE)
	scheduler.Schedule(
		&disk.DiskRequest{Type: disk.DiskRequestWrite, PageID: 20, Data: writeData, Callback: writeDone},
		&disk.DiskRequest{Type: disk.DiskRequestRead, PageID: 20, Data: readData, Callback: readDone},
	)
	fmt.Printf("   write ok=%v read ok=%v content=%q\n", <-writeDone, <-readDone, readData[:15])
	scheduler.ShutDown()

	// 5. ARC替换器
	fmt.Println("5. ARC替换器")
	replacer := buffer_pool.NewArcReplacer(4)
	for i := 0; i < 4; i++ {
		replacer.RecordAccess(common.PageID(i), common.FrameID(i))
		replacer.SetEvictable(common.PageID(i), true)
	}
	// 再次访问页面1使其晋升到mfu
	replacer.RecordAccess(1, 1)
	frameID, ok := replacer.Evict()
	fmt.Printf("   victim frame=%d ok=%v evictable_size=%d hit_ratio=%.2f\n",
		frameID, ok, replacer.Size(), replacer.Stats().GetHitRatio())

	if err := diskManager.ShutDown(); err != nil {
		fmt.Println("关闭失败:", err)
		return
	}
	fmt.Println("\n演示完成")
}
