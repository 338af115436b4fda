package buffer_pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/dockbase/server/common"
)

// checkArcInvariants 校验四链表边界与页表一致性
func checkArcInvariants(t *testing.T, arc *ArcReplacer) {
	t.Helper()
	arc.mu.Lock()
	defer arc.mu.Unlock()

	assert.LessOrEqual(t, arc.mru.Len()+arc.mfu.Len(), arc.capacity)
	assert.LessOrEqual(t, arc.mru.Len()+arc.mruGhost.Len(), arc.capacity)
	assert.LessOrEqual(t,
		arc.mru.Len()+arc.mfu.Len()+arc.mruGhost.Len()+arc.mfuGhost.Len(),
		2*arc.capacity)
	assert.GreaterOrEqual(t, arc.mruTargetSize, 0)
	assert.LessOrEqual(t, arc.mruTargetSize, arc.capacity)

	// 页表的键等于mru与mfu的并集
	resident := 0
	for element := arc.mru.Front(); element != nil; element = element.Next() {
		node := element.Value.(*arcNode)
		assert.Contains(t, arc.pageTable, node.pageID)
		assert.Equal(t, tagMRU, node.tag)
		resident++
	}
	for element := arc.mfu.Front(); element != nil; element = element.Next() {
		node := element.Value.(*arcNode)
		assert.Contains(t, arc.pageTable, node.pageID)
		assert.Equal(t, tagMFU, node.tag)
		resident++
	}
	assert.Equal(t, resident, len(arc.pageTable))
}

func fillEvictable(arc *ArcReplacer, pageIDs ...common.PageID) {
	for _, pageID := range pageIDs {
		arc.RecordAccess(pageID, common.FrameID(pageID))
		arc.SetEvictable(pageID, true)
	}
}

func TestArcRecordAccessAndSize(t *testing.T) {
	arc := NewArcReplacer(4)

	arc.RecordAccess(1, 1)
	arc.RecordAccess(2, 2)
	assert.Equal(t, 0, arc.Size(), "new frames start pinned")

	arc.SetEvictable(1, true)
	arc.SetEvictable(2, true)
	assert.Equal(t, 2, arc.Size())

	arc.SetEvictable(1, false)
	assert.Equal(t, 1, arc.Size())

	// 重复设置不改变计数
	arc.SetEvictable(2, true)
	assert.Equal(t, 1, arc.Size())

	// 不存在的页面静默返回
	arc.SetEvictable(99, true)
	assert.Equal(t, 1, arc.Size())

	checkArcInvariants(t, arc)
}

func TestArcEvictNoEvictableFrame(t *testing.T) {
	arc := NewArcReplacer(4)

	_, ok := arc.Evict()
	assert.False(t, ok)

	arc.RecordAccess(1, 1)
	_, ok = arc.Evict()
	assert.False(t, ok, "pinned frame must not be evicted")
}

func TestArcEvictPrefersMRUOverTarget(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)
	checkArcInvariants(t, arc)

	// mruTargetSize为0，|mru|=3 > 0，从mru的LRU端淘汰最早进入的页面1
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	assert.Equal(t, 2, arc.Size())
	assert.Equal(t, 1, arc.mruGhost.Len())
	checkArcInvariants(t, arc)
}

func TestArcPromotionToMFU(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)

	// 再次访问页面1，晋升到mfu
	arc.RecordAccess(1, 1)
	assert.Equal(t, 2, arc.mru.Len())
	assert.Equal(t, 1, arc.mfu.Len())
	checkArcInvariants(t, arc)

	// mru(LRU端为2)仍超过目标水位，牺牲者是2而不是晋升后的1
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), frameID)
	checkArcInvariants(t, arc)
}

func TestArcGhostHitAdaptsTarget(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)

	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	assert.Equal(t, 0, arc.mruTargetSize)

	// mru幽灵命中：目标水位上调，页面作为高频页面回到mfu
	arc.RecordAccess(1, 5)
	assert.Equal(t, 1, arc.mruTargetSize)
	assert.Equal(t, 0, arc.mruGhost.Len())
	arc.mu.Lock()
	node := arc.pageTable[1]
	require.NotNil(t, node)
	assert.Equal(t, tagMFU, node.tag)
	assert.Equal(t, common.FrameID(5), node.frameID)
	assert.False(t, node.evictable, "re-inserted frame starts pinned")
	arc.mu.Unlock()
	checkArcInvariants(t, arc)
}

func TestArcMFUGhostHitAdaptsTargetDown(t *testing.T) {
	arc := NewArcReplacer(2)

	// 页面1进入mfu后淘汰，页面号落入mfu幽灵链表
	fillEvictable(arc, 1)
	arc.RecordAccess(1, 1)
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	assert.Equal(t, 1, arc.mfuGhost.Len())

	// 抬高目标水位后验证mfu幽灵命中会将其下调
	fillEvictable(arc, 2)
	arc.Evict()
	arc.RecordAccess(2, 2) // mru幽灵命中，target 0 -> 1
	assert.Equal(t, 1, arc.mruTargetSize)

	arc.RecordAccess(1, 1) // mfu幽灵命中，target 1 -> 0
	assert.Equal(t, 0, arc.mruTargetSize)
	checkArcInvariants(t, arc)
}

func TestArcEvictPrefersMFUWithinTarget(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)

	// 制造mru幽灵命中抬高目标水位
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	arc.RecordAccess(1, 1)
	arc.SetEvictable(1, true)
	require.Equal(t, 1, arc.mruTargetSize)

	// 页面2晋升到mfu后mru只剩[3]，|mru|=1不超过目标水位，
	// 优先淘汰mfu的LRU端，此时是先回到mfu的页面1
	arc.RecordAccess(2, 2)
	frameID, ok = arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	assert.Equal(t, 1, arc.mfuGhost.Len())
	checkArcInvariants(t, arc)
}

func TestArcEvictSkipsPinnedFromLRUEnd(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)
	arc.SetEvictable(1, false)

	// LRU端的1被钉住，牺牲者是下一个可淘汰的2
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), frameID)
	checkArcInvariants(t, arc)
}

func TestArcEvictFallsBackAcrossLists(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2, 3)

	// 1和2晋升到mfu，mru只剩被钉住的3：|mru|=1超过目标水位0，
	// mru中没有可淘汰帧时回退到mfu的LRU端
	arc.RecordAccess(1, 1)
	arc.RecordAccess(2, 2)
	arc.SetEvictable(3, false)
	require.Equal(t, 1, arc.mru.Len())

	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), frameID)
	checkArcInvariants(t, arc)
}

func TestArcRemove(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2)

	arc.Remove(1)
	assert.Equal(t, 1, arc.Size())
	assert.Equal(t, 0, arc.mruGhost.Len(), "remove does no ghost tracking")

	// 移除不存在的页面是空操作
	arc.Remove(99)
	assert.Equal(t, 1, arc.Size())

	// 被移除页面的幽灵表项一并清掉
	frameID, ok := arc.Evict()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), frameID)
	require.Equal(t, 1, arc.mruGhost.Len())
	arc.Remove(2)
	assert.Equal(t, 0, arc.mruGhost.Len())
	checkArcInvariants(t, arc)
}

func TestArcGhostListsBounded(t *testing.T) {
	arc := NewArcReplacer(2)

	// 大量不同页面轮转，幽灵链表必须保持有界
	for i := 0; i < 50; i++ {
		pageID := common.PageID(i)
		arc.RecordAccess(pageID, common.FrameID(i))
		arc.SetEvictable(pageID, true)
		if i%2 == 0 {
			arc.Evict()
		}
		checkArcInvariants(t, arc)
	}
}

func TestArcOverCapacityInsertEvictsInternally(t *testing.T) {
	arc := NewArcReplacer(2)
	fillEvictable(arc, 1, 2)

	// 容量已满，新页面进入时内部淘汰一个可淘汰帧
	arc.RecordAccess(3, 3)
	arc.mu.Lock()
	assert.LessOrEqual(t, arc.mru.Len()+arc.mfu.Len(), 2)
	assert.NotContains(t, arc.pageTable, common.PageID(1), "LRU victim evicted")
	assert.Contains(t, arc.pageTable, common.PageID(3))
	arc.mu.Unlock()
	checkArcInvariants(t, arc)
}

func TestArcStats(t *testing.T) {
	arc := NewArcReplacer(3)
	fillEvictable(arc, 1, 2)
	arc.RecordAccess(1, 1)
	arc.Evict()

	stats := arc.Stats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)

	stats.Reset()
	assert.Equal(t, int64(0), stats.Requests)
}
