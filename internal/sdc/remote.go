package sdc

import (
	"fmt"
	"time"

	"github.com/mmsync/mmsync/internal/trange"
)

// RemoteFile 描述 SDC 目录中的一个文件，仅在一次查询内有效。
type RemoteFile struct {
	FileName string    `json:"file_name"`
	Timetag  time.Time `json:"timetag"`
	Size     int64     `json:"file_size"`
}

type wireFile struct {
	FileName string `json:"file_name"`
	Timetag  string `json:"timetag"`
	FileSize int64  `json:"file_size"`
}

type fileInfoResponse struct {
	Files []wireFile `json:"files"`
}

func (w wireFile) remoteFile() (RemoteFile, error) {
	if w.FileName == "" {
		return RemoteFile{}, fmt.Errorf("catalog record without file_name")
	}
	tag, err := trange.ParseTime(w.Timetag)
	if err != nil {
		return RemoteFile{}, fmt.Errorf("timetag for %s: %w", w.FileName, err)
	}
	return RemoteFile{FileName: w.FileName, Timetag: tag, Size: w.FileSize}, nil
}
