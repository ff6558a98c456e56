package pkg

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDSource 生成进程内唯一、大致按时间递增的 64 位 ID
type IDSource interface {
	NextID() uint64
}

// Snowflake 基于 worker 节点号的雪花 ID
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake nodeID 取值 0~1023，多实例部署时必须互不相同
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: n}, nil
}

func (s *Snowflake) NextID() uint64 {
	return uint64(s.node.Generate().Int64())
}
