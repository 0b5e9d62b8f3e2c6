package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FrameStore 上传帧的目录落盘：按日期分目录，文件名用 uuid 防碰撞
type FrameStore struct {
	Dir string
}

func NewFrameStore(dir string) *FrameStore {
	if dir == "" {
		dir = "data/frames"
	}
	return &FrameStore{Dir: dir}
}

// Save 落盘一帧图像，返回相对引用路径（写入 DetectionEvent.ImageRef）
func (f *FrameStore) Save(image []byte, ext string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("图像内容为空")
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(f.Dir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建帧目录失败: %w", err)
	}
	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("写入帧文件失败: %w", err)
	}
	return filepath.Join(day, name), nil
}

// Load 按引用读回帧内容
func (f *FrameStore) Load(ref string) ([]byte, error) {
	if strings.Contains(ref, "..") {
		return nil, fmt.Errorf("非法帧引用: %s", ref)
	}
	data, err := os.ReadFile(filepath.Join(f.Dir, ref))
	if err != nil {
		return nil, fmt.Errorf("读取帧文件失败: %w", err)
	}
	return data, nil
}
