// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/akwa/item_locks" // 库存项互斥锁的根节点

// Conn 包装一个 zk 会话
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话
func Connect(servers []string) (*Conn, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &Conn{Conn: conn}, nil
}

// ItemLock 是某个库存项的跨副本排他锁。
// 经典的临时顺序节点算法: 创建 lock- 顺序节点，最小者持锁，
// 其余 watch 前驱节点。
type ItemLock struct {
	conn     *Conn
	path     string // /akwa/item_locks/<itemID>
	lockNode string // 持锁后自己创建的节点路径
}

// NewItemLock 创建一个针对 itemID 的锁实例，确保父路径存在
func NewItemLock(conn *Conn, itemID string) (*ItemLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + itemID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &ItemLock{conn: conn, path: lockPath}, nil
}

func ensurePath(conn *Conn, path string) error {
	// 逐级创建，已存在不算错误
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	current := ""
	for _, p := range parts {
		current += "/" + p
		_, err := conn.Create(current, []byte(""), 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("failed to create lock path node %s: %w", current, err)
		}
	}
	return nil
}

// Lock 获取锁，获取不到则阻塞等待，直到 ctx 取消
func (l *ItemLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sort.Strings(children)

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 监听自己前面的那个节点
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous lock node")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if err == zk.ErrNoNode {
				// 前驱刚好被删了，重新竞争
				continue
			}
			return fmt.Errorf("failed to watch previous node: %w", err)
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			// 放弃等待时清掉自己的节点，否则会阻塞后来者
			_ = l.conn.Delete(l.lockNode, -1)
			l.lockNode = ""
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *ItemLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
