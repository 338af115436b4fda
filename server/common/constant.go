package common

// PAGE_SIZE 页面大小，所有页面读写都以该大小为单位
const PAGE_SIZE = 4096

// DEFAULT_PAGE_CAPACITY 数据文件初始容量(页数)，溢出时翻倍
const DEFAULT_PAGE_CAPACITY = 16

// INVALID_PAGE_ID 无效页面号
const INVALID_PAGE_ID = PageID(^uint64(0))

// INVALID_FRAME_ID 无效帧号
const INVALID_FRAME_ID = FrameID(-1)

// PageID 逻辑页面号，与物理偏移无算术关系
type PageID uint64

// FrameID 缓冲池帧号，由上层缓冲池分配
type FrameID int32
