package fsx

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = func(fs afero.Fs, oldpath, newpath string) error {
	return fs.Rename(oldpath, newpath)
}

// WriteFileAtomic 在 dir 下原子写入 name（同目录临时文件 + rename），目标已存在则覆盖。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 临时文件做 Sync；目录 Sync 采用 best-effort（避免平台差异导致误报失败）
func WriteFileAtomic(fs afero.Fs, dir, name string, data []byte) error {
	return writeFileAtomic(fs, dir, name, data, 0o644)
}

// WriteFile 是 WriteFileAtomic 的路径形式。
func WriteFile(fs afero.Fs, path string, data []byte) error {
	path = filepath.Clean(path)
	return writeFileAtomic(fs, filepath.Dir(path), filepath.Base(path), data, 0o644)
}

func writeFileAtomic(fs afero.Fs, dir, name string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		return err
	}

	if err := renameFunc(fs, tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(fs, dir)

	// rename 成功后 tmpName 已不存在，defer 中的 Remove 失败可以忽略。
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(fs afero.Fs, dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := fs.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
