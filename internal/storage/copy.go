package storage

import (
	"context"
	"fmt"
)

// Copy 将 src 中的 srcKey 复制到 dst 的 dstKey，源对象保持不变。
// 写入同样经过 dst.Put，因此目标键上不会出现半截文件。
func Copy(ctx context.Context, src Backend, srcKey string, dst Backend, dstKey string) (int64, error) {
	info, err := src.Stat(ctx, srcKey)
	if err != nil {
		return 0, fmt.Errorf("stat source %s: %w", srcKey, err)
	}

	reader, err := src.Open(ctx, srcKey)
	if err != nil {
		return 0, fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer reader.Close()

	if err := dst.Put(ctx, dstKey, reader, info.Size); err != nil {
		return 0, fmt.Errorf("copy %s -> %s: %w", src.Location(srcKey), dst.Location(dstKey), err)
	}
	return info.Size, nil
}
