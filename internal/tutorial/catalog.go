package tutorial

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one catalog line.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Title string `json:"title" yaml:"title"`
	File  string `json:"file" yaml:"file"`
}

type catalogFile struct {
	Tutorials []Entry `yaml:"tutorials"`
}

// DefaultCatalog is the lesson list shipped with the desktop app.
func DefaultCatalog() []Entry {
	keys := []struct{ key, file string }{
		{"演练广场", "chapter00.md"},
		{"基础知识", "chapter01.md"},
		{"Python序列", "chapter02.md"},
		{"选择与循环", "chapter03.md"},
		{"字符串与正则表达式", "chapter04.md"},
		{"函数的设计和使用", "chapter05.md"},
		{"面向对象程序设计", "chapter06.md"},
		{"文件操作", "chapter07.md"},
		{"异常处理", "chapter08.md"},
		{"GUI操作", "chapter09.md"},
	}
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k.key, Title: k.key, File: k.file}
	}
	return out
}

// LoadCatalog reads a YAML catalog:
//
//	tutorials:
//	  - key: basics
//	    title: Basics
//	    file: chapter01.md
//
// An entry without a title uses its key.
func LoadCatalog(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cf.Tutorials))
	for i, e := range cf.Tutorials {
		if e.Key == "" || e.File == "" {
			return nil, fmt.Errorf("catalog entry %d: key and file are required", i)
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("catalog entry %d: duplicate key %q", i, e.Key)
		}
		seen[e.Key] = true
		if e.Title == "" {
			cf.Tutorials[i].Title = e.Key
		}
	}
	return cf.Tutorials, nil
}
