package disk

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/dockbase/logger"
	"github.com/zhukovaskychina/dockbase/server/common"
	"github.com/zhukovaskychina/dockbase/util"
)

// diskMetadata 页表与统计信息，由metaMu保护
type diskMetadata struct {
	numFlushes int32
	numWrites  int32
	numDeletes int32

	// 已分配过的槽位数，包括当前在freeSlots中的
	pageCount uint64
	// 当前容量水位(页数)，溢出时翻倍
	pageCapacity uint64

	// 页面号到物理偏移的映射，偏移总是PAGE_SIZE的整数倍
	pages map[common.PageID]uint64
	// 已删除页面留下的可复用偏移，后进先出
	freeSlots []uint64

	// 每个已提交页面内容的校验和，读取整页时校验
	pageChecksums map[common.PageID]uint64

	// 日志刷盘进行中标志
	flushLog bool
}

// DiskManager 管理单个数据文件和独立的追加日志文件。
// 页面号与物理偏移的映射只存在于内存中，不落盘。
type DiskManager struct {
	dbFilePath  string
	logFilePath string

	dbFileMu sync.Mutex
	dbFile   *os.File

	logFileMu sync.Mutex
	logFile   *os.File

	metaMu sync.Mutex
	meta   diskMetadata
}

// NewDiskManager 打开或创建数据文件与日志文件。
// 日志文件复用数据文件的主干名加.log后缀，放在同一目录下。
func NewDiskManager(dbFilePath string) (*DiskManager, error) {
	stem := util.FileStem(dbFilePath)
	if stem == "" {
		return nil, common.NewInvalidError("db file path has no usable file stem")
	}
	logFilePath := filepath.Join(filepath.Dir(dbFilePath), stem+".log")

	existed, err := util.PathExists(dbFilePath)
	if err != nil {
		return nil, common.NewIOError("stat db file", err)
	}

	dbFile, err := os.OpenFile(dbFilePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, common.NewIOError("open db file", err)
	}

	initialSize := int64(common.DEFAULT_PAGE_CAPACITY+1) * common.PAGE_SIZE
	if !existed {
		if err := dbFile.Truncate(initialSize); err != nil {
			dbFile.Close()
			return nil, common.NewIOError("extend db file", err)
		}
	} else {
		fd, err := dbFile.Stat()
		if err != nil {
			dbFile.Close()
			return nil, common.NewIOError("stat db file", err)
		}
		if fd.Size() < initialSize {
			if err := dbFile.Truncate(initialSize); err != nil {
				dbFile.Close()
				return nil, common.NewIOError("extend db file", err)
			}
		}
	}

	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		dbFile.Close()
		return nil, common.NewIOError("open log file", err)
	}

	dm := &DiskManager{
		dbFilePath:  dbFilePath,
		logFilePath: logFilePath,
		dbFile:      dbFile,
		logFile:     logFile,
		meta: diskMetadata{
			pageCapacity:  common.DEFAULT_PAGE_CAPACITY,
			pages:         make(map[common.PageID]uint64),
			freeSlots:     make([]uint64, 0),
			pageChecksums: make(map[common.PageID]uint64),
		},
	}
	logger.Debugf("disk manager opened, db=%s log=%s", dbFilePath, logFilePath)
	return dm, nil
}

// allocatePage 分配一个页面槽位，调用方必须持有metaMu。
// 优先复用freeSlots，后进先出；耗尽时按计数分配，越过容量水位则翻倍扩容。
func (dm *DiskManager) allocatePage() (uint64, error) {
	if n := len(dm.meta.freeSlots); n > 0 {
		offset := dm.meta.freeSlots[n-1]
		dm.meta.freeSlots = dm.meta.freeSlots[:n-1]
		return offset, nil
	}

	offset := dm.meta.pageCount * common.PAGE_SIZE
	dm.meta.pageCount++

	if dm.meta.pageCount > dm.meta.pageCapacity {
		dm.meta.pageCapacity *= 2
		newSize := int64(dm.meta.pageCapacity) * common.PAGE_SIZE

		dm.dbFileMu.Lock()
		err := dm.dbFile.Truncate(newSize)
		dm.dbFileMu.Unlock()
		if err != nil {
			return 0, common.NewIOError("extend db file on capacity growth", err)
		}
		logger.Infof("db file capacity doubled to %d pages", dm.meta.pageCapacity)
	}
	return offset, nil
}

// WritePage 将整页数据写入pageID对应的槽位，没有映射时先分配。
// 元数据锁在文件IO期间释放；新分配的槽位在IO失败时回收进freeSlots。
func (dm *DiskManager) WritePage(pageID common.PageID, data []byte) error {
	if len(data) != common.PAGE_SIZE {
		return common.NewInvalidError("page data must be exactly PAGE_SIZE bytes")
	}

	dm.metaMu.Lock()
	offset, exists := dm.meta.pages[pageID]
	provisional := false
	if !exists {
		var err error
		offset, err = dm.allocatePage()
		if err != nil {
			dm.metaMu.Unlock()
			return errors.Trace(err)
		}
		provisional = true
	}
	dm.metaMu.Unlock()

	ioErr := dm.writePageAt(offset, data)

	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	if ioErr != nil {
		if provisional {
			// 回滚：刚分配但尚未进入页表的槽位退回空闲池
			dm.meta.freeSlots = append(dm.meta.freeSlots, offset)
			logger.Warnf("page %d write failed, slot %d returned to free pool", pageID, offset)
		}
		return common.NewIOError("write page", ioErr)
	}
	dm.meta.pages[pageID] = offset
	dm.meta.pageChecksums[pageID] = util.HashCode(data)
	dm.meta.numWrites++
	return nil
}

func (dm *DiskManager) writePageAt(offset uint64, data []byte) error {
	dm.dbFileMu.Lock()
	defer dm.dbFileMu.Unlock()

	if _, err := dm.dbFile.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	if _, err := dm.dbFile.WriteAt(data, int64(offset)); err != nil {
		return err
	}
	return dm.dbFile.Sync()
}

// ReadPage 读取pageID对应的页面内容到out中。
// 页面不存在返回Invalid，偏移越过文件末尾返回IO；短读时剩余部分补零。
func (dm *DiskManager) ReadPage(pageID common.PageID, out []byte) error {
	dm.metaMu.Lock()
	offset, exists := dm.meta.pages[pageID]
	checksum, hasChecksum := dm.meta.pageChecksums[pageID]
	dm.metaMu.Unlock()
	if !exists {
		return common.NewInvalidError("page id has no mapping")
	}

	dm.dbFileMu.Lock()
	fd, err := dm.dbFile.Stat()
	if err != nil {
		dm.dbFileMu.Unlock()
		return common.NewIOError("stat db file", err)
	}
	if int64(offset) >= fd.Size() {
		dm.dbFileMu.Unlock()
		return common.NewIOError("page offset past end of file", nil)
	}

	n, err := dm.dbFile.ReadAt(out, int64(offset))
	dm.dbFileMu.Unlock()
	if err != nil && err != io.EOF {
		return common.NewIOError("read page", err)
	}
	// 短读补零
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	if hasChecksum && len(out) == common.PAGE_SIZE {
		if util.HashCode(out) != checksum {
			logger.Warnf("page %d checksum mismatch on read", pageID)
		}
	}
	return nil
}

// DeletePage 删除页面映射，其槽位退回freeSlots。重复删除是空操作。
func (dm *DiskManager) DeletePage(pageID common.PageID) {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()

	offset, exists := dm.meta.pages[pageID]
	if !exists {
		return
	}
	delete(dm.meta.pages, pageID)
	delete(dm.meta.pageChecksums, pageID)
	dm.meta.freeSlots = append(dm.meta.freeSlots, offset)
	dm.meta.numDeletes++
}

// WriteLog 追加日志内容并刷盘。空内容不产生任何副作用。
func (dm *DiskManager) WriteLog(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	dm.metaMu.Lock()
	dm.meta.flushLog = true
	dm.metaMu.Unlock()

	ioErr := dm.appendLog(data)

	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	dm.meta.flushLog = false
	if ioErr != nil {
		return common.NewIOError("write log", ioErr)
	}
	dm.meta.numFlushes++
	return nil
}

func (dm *DiskManager) appendLog(data []byte) error {
	dm.logFileMu.Lock()
	defer dm.logFileMu.Unlock()

	if _, err := dm.logFile.Write(data); err != nil {
		return err
	}
	return dm.logFile.Sync()
}

// ReadLog 从offset处读取日志内容到out中，短读补零。
// offset不小于日志文件长度时返回false。
func (dm *DiskManager) ReadLog(out []byte, offset uint64) (bool, error) {
	dm.logFileMu.Lock()
	defer dm.logFileMu.Unlock()

	fd, err := dm.logFile.Stat()
	if err != nil {
		return false, common.NewIOError("stat log file", err)
	}
	if int64(offset) >= fd.Size() {
		return false, nil
	}

	n, err := dm.logFile.ReadAt(out, int64(offset))
	if err != nil && err != io.EOF {
		return false, common.NewIOError("read log", err)
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return true, nil
}

// NumWrites 页面写入次数
func (dm *DiskManager) NumWrites() int32 {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.numWrites
}

// NumFlushes 日志刷盘次数
func (dm *DiskManager) NumFlushes() int32 {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.numFlushes
}

// NumDeletes 页面删除次数
func (dm *DiskManager) NumDeletes() int32 {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.numDeletes
}

// FlushState 日志刷盘是否进行中
func (dm *DiskManager) FlushState() bool {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.flushLog
}

// PageCount 已分配过的槽位数
func (dm *DiskManager) PageCount() uint64 {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.pageCount
}

// PageCapacity 当前容量水位(页数)
func (dm *DiskManager) PageCapacity() uint64 {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return dm.meta.pageCapacity
}

// FreeSlotCount 空闲池中可复用的槽位数
func (dm *DiskManager) FreeSlotCount() int {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	return len(dm.meta.freeSlots)
}

// DBFileSize 数据文件当前长度
func (dm *DiskManager) DBFileSize() (int64, error) {
	dm.dbFileMu.Lock()
	defer dm.dbFileMu.Unlock()
	fd, err := dm.dbFile.Stat()
	if err != nil {
		return 0, common.NewIOError("stat db file", err)
	}
	return fd.Size(), nil
}

// LogFileName 日志文件路径
func (dm *DiskManager) LogFileName() string {
	return dm.logFilePath
}

// ShutDown 依次获取数据文件锁和日志文件锁作为静默点，刷盘并关闭文件句柄
func (dm *DiskManager) ShutDown() error {
	dm.dbFileMu.Lock()
	dbErr := dm.dbFile.Sync()
	closeErr := dm.dbFile.Close()
	if dbErr == nil {
		dbErr = closeErr
	}
	dm.dbFileMu.Unlock()

	dm.logFileMu.Lock()
	logErr := dm.logFile.Sync()
	closeErr = dm.logFile.Close()
	if logErr == nil {
		logErr = closeErr
	}
	dm.logFileMu.Unlock()

	if dbErr != nil {
		return common.NewIOError("close db file", dbErr)
	}
	if logErr != nil {
		return common.NewIOError("close log file", logErr)
	}
	logger.Debugf("disk manager shut down, db=%s", dm.dbFilePath)
	return nil
}
