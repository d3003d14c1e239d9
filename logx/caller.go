package logx

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

type caller struct {
	file     string
	line     int
	funcName string
}

// -------------------- 调用方信息 --------------------

// maxCallerDepth 全局函数 -> Logger -> log -> encodeLog -> getCaller 之外留足余量
const maxCallerDepth = 16

var selfPkg = func() string {
	pc, _, _, _ := runtime.Caller(0)
	if f := runtime.FuncForPC(pc); f != nil {
		return funcPackage(f.Name())
	}
	return ""
}()

// getCaller 跳过 logx 自身的栈帧（_test.go 除外），返回第一个外部调用方
func getCaller() caller {
	pcs := make([]uintptr, maxCallerDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if funcPackage(f.Function) != selfPkg || strings.HasSuffix(f.File, "_test.go") {
			return caller{
				file:     trimFilePath(f.File),
				line:     f.Line,
				funcName: trimFuncName(f.Function),
			}
		}
		if !more {
			break
		}
	}
	return caller{funcName: "unknown"}
}

// github.com/imattdu/tracectx/logx.(*loggerImpl).log -> github.com/imattdu/tracectx/logx
func funcPackage(name string) string {
	slash := strings.LastIndex(name, "/")
	if dot := strings.Index(name[slash+1:], "."); dot >= 0 {
		return name[:slash+1+dot]
	}
	return name
}

var (
	modRootOnce sync.Once
	modRoot     string
)

func getModRoot(fullPath string) string {
	modRootOnce.Do(func() {
		if m, err := findGoModRoot(fullPath); err == nil {
			modRoot = m
		}
	})
	return modRoot
}

// /home/x/tracectx/reporter/batcher.go -> reporter/batcher.go
func trimFilePath(fullPath string) string {
	if fullPath == "" {
		return ""
	}
	if root := getModRoot(fullPath); root != "" {
		if rel, err := filepath.Rel(root, fullPath); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(fullPath)
}

var errNoGoMod = errors.New("go.mod not found")

func findGoModRoot(start string) (string, error) {
	dir := filepath.Dir(start)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNoGoMod
		}
		dir = parent
	}
}

// github.com/imattdu/tracectx/tracex.(*Context).Finish -> (*Context).Finish
func trimFuncName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 && idx+1 < len(name) {
		name = name[idx+1:]
	}
	return name
}
