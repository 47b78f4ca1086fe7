package filter

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

var (
	filters     = make(map[string]Filter)
	filterMutex sync.RWMutex
)

// Parse 解析过滤规则, 规则文件允许包含注释与尾随逗号
func Parse(rule []byte) (Filter, error) {
	rule = jsonc.ToJSON(rule)
	if !gjson.ValidBytes(rule) {
		return nil, errors.New("invalid filter rule")
	}
	return Generate("and", gjson.ParseBytes(rule))
}

// Add 读取规则文件并缓存解析结果
func Add(file string) error {
	if file == "" {
		return nil
	}
	bs, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read filter")
	}
	f, err := Parse(bs)
	if err != nil {
		return errors.Wrapf(err, "parse filter %s", file)
	}
	filterMutex.Lock()
	filters[file] = f
	filterMutex.Unlock()
	log.Infof("已加载事件过滤规则: %v", file)
	return nil
}

// Find 获取已加载的规则文件对应的过滤器, 未加载时返回 nil
func Find(file string) Filter {
	if file == "" {
		return nil
	}
	filterMutex.RLock()
	defer filterMutex.RUnlock()
	return filters[file]
}

// Load 加载并返回规则文件对应的过滤器, file 为空时返回 nil
func Load(file string) (Filter, error) {
	if file == "" {
		return nil, nil
	}
	if f := Find(file); f != nil {
		return f, nil
	}
	if err := Add(file); err != nil {
		return nil, err
	}
	return Find(file), nil
}
