package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// GroupFields 提供一次同步中单个分组的字段，供 loader 日志复用。
func GroupFields(syncID, instrument, probe, dataRate, level, datatype string) logrus.Fields {
	return logrus.Fields{
		"sync_id":    syncID,
		"instrument": instrument,
		"probe":      probe,
		"data_rate":  dataRate,
		"level":      level,
		"datatype":   datatype,
	}
}

// FileFields 描述单个文件的解析结果。
func FileFields(fileName, location, source string) logrus.Fields {
	return logrus.Fields{
		"file":     fileName,
		"location": location,
		"source":   source,
	}
}
