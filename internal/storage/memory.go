package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryObject is an object held by Memory.
type MemoryObject struct {
	Info    ObjectInfo
	Content []byte
}

// Memory is a process-local Storage used for local runs and tests.
// Objects disappear with the process.
type Memory struct {
	mu        sync.RWMutex
	container string
	created   bool
	objects   map[string]MemoryObject
}

// NewMemory returns an empty in-memory store bound to container.
func NewMemory(container string) *Memory {
	return &Memory{container: container, objects: make(map[string]MemoryObject)}
}

func (m *Memory) Container() string { return m.container }

func (m *Memory) EnsureContainer(context.Context) error {
	m.mu.Lock()
	m.created = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read content: %w", err)
	}
	sum := md5.Sum(buf)
	info := ObjectInfo{
		Container:    m.container,
		Key:          key,
		Size:         int64(len(buf)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
	}

	m.mu.Lock()
	m.objects[key] = MemoryObject{Info: info, Content: buf}
	m.mu.Unlock()
	return info, nil
}

// Object returns the object stored under key.
func (m *Memory) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ContainerCreated reports whether EnsureContainer has been called.
func (m *Memory) ContainerCreated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created
}
