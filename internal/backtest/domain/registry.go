package domain

import (
	"sync"

	"github.com/wyfcoding/backtestengine/pkg/metrics"
)

// Registry 是进程内 token → *Account 的映射（spec §2/§4.4），生命周期与
// 服务进程相同。所有查找路径共享读锁，创建/删除路径独占写锁。
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]*Account
	byName  map[string]struct{}
	metrics *metrics.Metrics
}

// NewRegistry 创建一个空的账户注册表。metrics 可以为 nil，此时不上报指标。
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		byToken: make(map[string]*Account),
		byName:  make(map[string]struct{}),
		metrics: m,
	}
}

// Create 注册一个新账户，name 和 token 都必须全局唯一。
func (r *Registry) Create(acc *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[acc.Token]; ok {
		return ErrAccountExists
	}
	if _, ok := r.byName[acc.Name]; ok {
		return ErrAccountExists
	}

	r.byToken[acc.Token] = acc
	r.byName[acc.Name] = struct{}{}
	r.reportSize()
	return nil
}

// Lookup 按 token 查找账户，token 无效或不存在时返回 ErrUnauthorized，
// 与 spec §7 的鉴权语义保持一致（不区分"不存在"和"无权限"以避免探测）。
func (r *Registry) Lookup(token string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.byToken[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return acc, nil
}

// Delete 移除一个账户，供批量清理接口使用。
func (r *Registry) Delete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.byToken[token]
	if !ok {
		return ErrNotFound
	}
	delete(r.byToken, token)
	delete(r.byName, acc.Name)
	r.reportSize()
	return nil
}

// Restore 把一个从快照恢复的账户直接插入注册表，跳过唯一性冲突以外的检查，
// 用于服务重启后的批量重放。
func (r *Registry) Restore(acc *Account) error {
	return r.Create(acc)
}

// Tokens 返回当前注册的全部账户 token，供管理员批量清理接口使用。
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byToken))
	for token := range r.byToken {
		out = append(out, token)
	}
	return out
}

// DeleteAll 移除全部账户，供 spec §6 "admin token deletes all" 语义使用。
func (r *Registry) DeleteAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.byToken)
	r.byToken = make(map[string]*Account)
	r.byName = make(map[string]struct{})
	r.reportSize()
	return n
}

// Len 返回当前注册的账户数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

func (r *Registry) reportSize() {
	if r.metrics == nil {
		return
	}
	r.metrics.AccountsActive.Set(float64(len(r.byToken)))
}
