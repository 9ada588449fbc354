package loader

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mmsync/mmsync/internal/cache"
)

// ErrDuplicateGroup 表示同一次同步中出现了重复的 GroupKey。
type ErrDuplicateGroup struct {
	Key cache.GroupKey
}

func (e ErrDuplicateGroup) Error() string {
	return fmt.Sprintf("group %q registered twice", e.Key.String())
}

// Accumulator 保存每个分组的有序路径列表，以及整次同步的去重集合。所有方法并发安全。
type Accumulator struct {
	mu     sync.Mutex
	order  []cache.GroupKey
	groups map[cache.GroupKey][]string
	inList map[cache.GroupKey]map[string]struct{}
	global map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		groups: make(map[cache.GroupKey][]string),
		inList: make(map[cache.GroupKey]map[string]struct{}),
		global: make(map[string]struct{}),
	}
}

// Register 登记分组；重复登记返回 ErrDuplicateGroup。
func (a *Accumulator) Register(g cache.GroupKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.groups[g]; ok {
		return ErrDuplicateGroup{Key: g}
	}
	a.order = append(a.order, g)
	a.groups[g] = []string{}
	a.inList[g] = make(map[string]struct{})
	return nil
}

// Add 把路径追加到分组列表与全局集合；同一分组内重复的路径只保留一次。
func (a *Accumulator) Add(g cache.GroupKey, location string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.inList[g]
	if !ok {
		set = make(map[string]struct{})
		a.inList[g] = set
		a.order = append(a.order, g)
	}
	a.global[location] = struct{}{}
	if _, dup := set[location]; dup {
		return
	}
	set[location] = struct{}{}
	a.groups[g] = append(a.groups[g], location)
}

// Seen reports whether location was already resolved in this sync.
func (a *Accumulator) Seen(location string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.global[location]
	return ok
}

// Group 返回分组的路径副本，按字典序排序。
func (a *Accumulator) Group(g cache.GroupKey) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]string(nil), a.groups[g]...)
	sort.Strings(out)
	return out
}

// GroupSet 返回分组已知路径的集合副本。
func (a *Accumulator) GroupSet(g cache.GroupKey) map[string]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]struct{}, len(a.inList[g]))
	for k := range a.inList[g] {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns registered groups in registration order.
func (a *Accumulator) Keys() []cache.GroupKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]cache.GroupKey(nil), a.order...)
}
