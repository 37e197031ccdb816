package disposable

import "sync"

type DisposableImp struct {
	once     sync.Once
	callback func()
}

// NewDisposable returns a Disposable that runs callback on the first Dispose call only.
func NewDisposable(callback func()) *DisposableImp {
	return &DisposableImp{callback: callback}
}

func (d *DisposableImp) Dispose() {
	d.once.Do(func() {
		if d.callback != nil {
			d.callback()
		}
	})
}

type CompositeDisposableImp struct {
	mu        sync.Mutex
	delegates []Disposable
}

func NewCompositeDisposable(delegates ...Disposable) *CompositeDisposableImp {
	return &CompositeDisposableImp{delegates: delegates}
}

func (c *CompositeDisposableImp) Add(delegates ...Disposable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = append(c.delegates, delegates...)
}

// Dispose disposes the delegates in the order they were added and forgets them.
func (c *CompositeDisposableImp) Dispose() {
	c.mu.Lock()
	delegates := c.delegates
	c.delegates = nil
	c.mu.Unlock()
	for _, d := range delegates {
		d.Dispose()
	}
}
