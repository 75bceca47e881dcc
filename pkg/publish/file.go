package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diagnostic-updater/pkg/diagnostic"
)

// FilePublisher 每次发布以原子方式覆盖写入最新批次（读者不会看到半个文件）
type FilePublisher struct {
	path string
	perm os.FileMode
}

// NewFilePublisher 创建文件发布端，父目录不存在时自动创建
func NewFilePublisher(path string) (*FilePublisher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}
	return &FilePublisher{path: path, perm: 0o644}, nil
}

func (p *FilePublisher) Name() string { return "file" }

// Path 输出文件路径
func (p *FilePublisher) Path() string { return p.path }

func (p *FilePublisher) Publish(ctx context.Context, batch *diagnostic.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := atomicWriteFile(p.path, data, p.perm); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}
	return nil
}
