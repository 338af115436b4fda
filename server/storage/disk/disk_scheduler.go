package disk

import (
	"sync"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/dockbase/logger"
	"github.com/zhukovaskychina/dockbase/server/common"
)

// DiskRequestType 请求类型
type DiskRequestType int

const (
	DiskRequestRead DiskRequestType = iota
	DiskRequestWrite
)

// DiskRequest 一次磁盘调度请求。
// Data必须是PAGE_SIZE长度的切片，从入队到Callback收到通知为止由调度器独占借用，
// 期间调用方不得访问。Callback必须带缓冲(容量至少为1)，调度器对其做非阻塞发送，
// 放不进去视为调用方放弃了结果。
type DiskRequest struct {
	Type     DiskRequestType
	PageID   common.PageID
	Data     []byte
	Callback chan<- bool
}

// DiskScheduler 持有一个后台工作线程，串行消费请求队列并分发给DiskManager。
// 单个调用方按入队顺序得到处理；不同调用方之间的交错顺序不保证。
type DiskScheduler struct {
	diskManager  *DiskManager
	requestQueue *common.Channel

	workerDone sync.WaitGroup
	once       sync.Once
}

// NewDiskScheduler 创建调度器并启动唯一的工作线程
func NewDiskScheduler(dm *DiskManager) *DiskScheduler {
	ds := &DiskScheduler{
		diskManager:  dm,
		requestQueue: common.NewChannel(),
	}
	ds.workerDone.Add(1)
	go ds.workerLoop()
	return ds
}

// Schedule 按给定顺序入队请求，入队完成即返回，不等待执行。
// 每个请求的执行结果通过其Callback单独通知。
func (ds *DiskScheduler) Schedule(requests ...*DiskRequest) error {
	for _, request := range requests {
		if err := ds.requestQueue.Put(request); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// workerLoop 依次取出请求并执行，取到哨兵(nil)时退出
func (ds *DiskScheduler) workerLoop() {
	defer ds.workerDone.Done()

	for {
		element, err := ds.requestQueue.Get()
		if err != nil {
			logger.Errorf("disk scheduler queue broken: %v", err)
			return
		}
		if element == nil {
			// 哨兵：所有先前入队的请求都已被取出
			return
		}
		request := element.(*DiskRequest)
		ds.process(request)
	}
}

func (ds *DiskScheduler) process(request *DiskRequest) {
	var err error
	switch request.Type {
	case DiskRequestRead:
		err = ds.diskManager.ReadPage(request.PageID, request.Data)
	case DiskRequestWrite:
		err = ds.diskManager.WritePage(request.PageID, request.Data)
	default:
		err = common.NewInvalidError("unknown disk request type")
	}
	if err != nil {
		logger.Debugf("disk request on page %d failed: %v", request.PageID, err)
	}

	select {
	case request.Callback <- err == nil:
	default:
		// 调用方已放弃结果
		logger.Debugf("completion for page %d dropped", request.PageID)
	}
}

// ShutDown 投递哨兵并等待工作线程退出。可重复调用。
func (ds *DiskScheduler) ShutDown() {
	ds.once.Do(func() {
		if err := ds.requestQueue.Put(nil); err != nil {
			logger.Errorf("disk scheduler shutdown enqueue failed: %v", err)
		}
		ds.workerDone.Wait()
		ds.requestQueue.Close()
	})
}

// Close 等价于ShutDown
func (ds *DiskScheduler) Close() {
	ds.ShutDown()
}
