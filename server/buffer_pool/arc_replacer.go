package buffer_pool

import (
	"container/list"
	"sync"

	"github.com/zhukovaskychina/dockbase/logger"
	"github.com/zhukovaskychina/dockbase/server/common"
)

// Replacer 为缓冲池挑选牺牲帧
type Replacer interface {

	// RecordAccess 记录一次页面访问，将页面移动到相应链表的MRU端
	RecordAccess(pageID common.PageID, frameID common.FrameID)

	// SetEvictable 标记常驻帧是否可被淘汰，页面不存在时静默返回
	SetEvictable(pageID common.PageID, evictable bool)

	// Evict 挑选一个可淘汰的牺牲帧，没有可淘汰帧时第二个返回值为false
	Evict() (common.FrameID, bool)

	// Remove 无条件移除页面，不做幽灵跟踪
	Remove(pageID common.PageID)

	// Size 当前可淘汰的帧数量
	Size() int
}

// arc链表标记
type arcListTag int

const (
	tagMRU arcListTag = iota
	tagMFU
	tagMRUGhost
	tagMFUGhost
)

// arcNode 常驻页面表项
type arcNode struct {
	pageID    common.PageID
	frameID   common.FrameID
	evictable bool
	tag       arcListTag
	element   *list.Element
}

// ghostNode 幽灵链表表项，只保留页面号用于自适应
type ghostNode struct {
	pageID  common.PageID
	tag     arcListTag
	element *list.Element
}

// ArcReplacer 自适应替换缓存(ARC)策略。
// mru/mfu保存常驻帧，mruGhost/mfuGhost保存最近被淘汰的页面号，
// 幽灵命中时调整mruTargetSize。链表Front为MRU端，Back为LRU端。
type ArcReplacer struct {
	mu sync.Mutex

	capacity      int
	mruTargetSize int
	currSize      int

	mru      *list.List
	mfu      *list.List
	mruGhost *list.List
	mfuGhost *list.List

	pageTable  map[common.PageID]*arcNode
	ghostTable map[common.PageID]*ghostNode

	stats *ReplacerStats
}

func NewArcReplacer(capacity int) *ArcReplacer {
	return &ArcReplacer{
		capacity:   capacity,
		mru:        list.New(),
		mfu:        list.New(),
		mruGhost:   list.New(),
		mfuGhost:   list.New(),
		pageTable:  make(map[common.PageID]*arcNode),
		ghostTable: make(map[common.PageID]*ghostNode),
		stats:      NewReplacerStats(),
	}
}

// RecordAccess 记录一次页面访问
func (arc *ArcReplacer) RecordAccess(pageID common.PageID, frameID common.FrameID) {
	arc.mu.Lock()
	defer arc.mu.Unlock()

	if node, ok := arc.pageTable[pageID]; ok {
		// 常驻命中：mru晋升mfu，mfu内部移动到MRU端
		arc.stats.RecordHit(false)
		arc.detachResident(node)
		node.frameID = frameID
		node.tag = tagMFU
		node.element = arc.mfu.PushFront(node)
		return
	}

	if ghost, ok := arc.ghostTable[pageID]; ok {
		// 幽灵命中：调整mruTargetSize后作为高频页面重新进入mfu
		arc.stats.RecordHit(true)
		if ghost.tag == tagMRUGhost {
			arc.adapt(arc.mfuGhost.Len(), arc.mruGhost.Len(), true)
		} else {
			arc.adapt(arc.mruGhost.Len(), arc.mfuGhost.Len(), false)
		}
		arc.dropGhost(ghost)
		arc.insertResident(pageID, frameID, tagMFU)
		return
	}

	// 未知页面：进入mru的MRU端
	arc.stats.RecordMiss()
	arc.insertResident(pageID, frameID, tagMRU)
}

// adapt 幽灵命中时移动目标水位，delta = max(1, other/this)，夹在[0, capacity]内
func (arc *ArcReplacer) adapt(otherGhostLen, thisGhostLen int, increase bool) {
	delta := 1
	if thisGhostLen > 0 && otherGhostLen/thisGhostLen > 1 {
		delta = otherGhostLen / thisGhostLen
	}
	if increase {
		arc.mruTargetSize += delta
		if arc.mruTargetSize > arc.capacity {
			arc.mruTargetSize = arc.capacity
		}
	} else {
		arc.mruTargetSize -= delta
		if arc.mruTargetSize < 0 {
			arc.mruTargetSize = 0
		}
	}
}

// insertResident 新常驻页面入表，维护容量与幽灵链表边界
func (arc *ArcReplacer) insertResident(pageID common.PageID, frameID common.FrameID, tag arcListTag) {
	node := &arcNode{
		pageID:  pageID,
		frameID: frameID,
		tag:     tag,
	}
	if tag == tagMRU {
		node.element = arc.mru.PushFront(node)
	} else {
		node.element = arc.mfu.PushFront(node)
	}
	arc.pageTable[pageID] = node

	if arc.mru.Len()+arc.mfu.Len() > arc.capacity {
		// 容量超限，内部淘汰一个可淘汰帧
		if _, ok := arc.evictLocked(); !ok {
			logger.Debugf("arc replacer over capacity with no evictable frame")
		}
	}
	arc.trimGhosts()
}

// detachResident 将常驻节点从其链表上摘下，页表项保留
func (arc *ArcReplacer) detachResident(node *arcNode) {
	if node.tag == tagMRU {
		arc.mru.Remove(node.element)
	} else {
		arc.mfu.Remove(node.element)
	}
	node.element = nil
}

// dropGhost 摘除幽灵表项
func (arc *ArcReplacer) dropGhost(ghost *ghostNode) {
	if ghost.tag == tagMRUGhost {
		arc.mruGhost.Remove(ghost.element)
	} else {
		arc.mfuGhost.Remove(ghost.element)
	}
	delete(arc.ghostTable, ghost.pageID)
}

// trimGhosts 维护幽灵链表边界：|mru|+|mruGhost| <= capacity，四表总和 <= 2*capacity。
// 超限时静默丢弃最老的幽灵表项。
func (arc *ArcReplacer) trimGhosts() {
	for arc.mru.Len()+arc.mruGhost.Len() > arc.capacity && arc.mruGhost.Len() > 0 {
		arc.dropOldestGhost(arc.mruGhost)
	}
	for arc.mru.Len()+arc.mfu.Len()+arc.mruGhost.Len()+arc.mfuGhost.Len() > 2*arc.capacity {
		if arc.mfuGhost.Len() > 0 {
			arc.dropOldestGhost(arc.mfuGhost)
		} else if arc.mruGhost.Len() > 0 {
			arc.dropOldestGhost(arc.mruGhost)
		} else {
			return
		}
	}
}

func (arc *ArcReplacer) dropOldestGhost(ghostList *list.List) {
	back := ghostList.Back()
	if back == nil {
		return
	}
	ghost := back.Value.(*ghostNode)
	ghostList.Remove(back)
	delete(arc.ghostTable, ghost.pageID)
}

// SetEvictable 标记常驻帧是否可被淘汰
func (arc *ArcReplacer) SetEvictable(pageID common.PageID, evictable bool) {
	arc.mu.Lock()
	defer arc.mu.Unlock()

	node, ok := arc.pageTable[pageID]
	if !ok {
		return
	}
	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		arc.currSize++
	} else {
		arc.currSize--
	}
}

// Evict 按ARC策略挑选牺牲帧：|mru|超过目标水位时优先mru的LRU端，
// 否则优先mfu的LRU端，均从LRU端起跳过不可淘汰的帧。
func (arc *ArcReplacer) Evict() (common.FrameID, bool) {
	arc.mu.Lock()
	defer arc.mu.Unlock()
	return arc.evictLocked()
}

func (arc *ArcReplacer) evictLocked() (common.FrameID, bool) {
	var victim *arcNode
	if arc.mru.Len() > arc.mruTargetSize {
		victim = arc.findVictim(arc.mru)
		if victim == nil {
			victim = arc.findVictim(arc.mfu)
		}
	} else {
		victim = arc.findVictim(arc.mfu)
		if victim == nil {
			victim = arc.findVictim(arc.mru)
		}
	}
	if victim == nil {
		return common.INVALID_FRAME_ID, false
	}

	arc.detachResident(victim)
	delete(arc.pageTable, victim.pageID)
	arc.currSize--

	// 牺牲者的页面号进入对应的幽灵链表
	ghost := &ghostNode{pageID: victim.pageID}
	if victim.tag == tagMRU {
		ghost.tag = tagMRUGhost
		ghost.element = arc.mruGhost.PushFront(ghost)
	} else {
		ghost.tag = tagMFUGhost
		ghost.element = arc.mfuGhost.PushFront(ghost)
	}
	arc.ghostTable[ghost.pageID] = ghost
	arc.trimGhosts()

	arc.stats.RecordEviction()
	return victim.frameID, true
}

// findVictim 从LRU端向前找第一个可淘汰的节点
func (arc *ArcReplacer) findVictim(residentList *list.List) *arcNode {
	for element := residentList.Back(); element != nil; element = element.Prev() {
		node := element.Value.(*arcNode)
		if node.evictable {
			return node
		}
	}
	return nil
}

// Remove 无条件移除页面，不做幽灵跟踪。页面已不存在，残留的幽灵表项一并清掉。
func (arc *ArcReplacer) Remove(pageID common.PageID) {
	arc.mu.Lock()
	defer arc.mu.Unlock()

	if node, ok := arc.pageTable[pageID]; ok {
		arc.detachResident(node)
		delete(arc.pageTable, pageID)
		if node.evictable {
			arc.currSize--
		}
		arc.stats.RecordRemoval()
		return
	}
	if ghost, ok := arc.ghostTable[pageID]; ok {
		arc.dropGhost(ghost)
	}
}

// Size 当前可淘汰的帧数量
func (arc *ArcReplacer) Size() int {
	arc.mu.Lock()
	defer arc.mu.Unlock()
	return arc.currSize
}

// Stats 替换器统计信息
func (arc *ArcReplacer) Stats() *ReplacerStats {
	return arc.stats
}
