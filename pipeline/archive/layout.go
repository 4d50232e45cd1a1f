package archive

import (
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/types"
)

// File 归档中的一个计划文件
type File struct {
	Path string
	// Format 仅 ModelRef 使用，对应 ModelFile.Format
	Format string
}

// Layout 条目到归档路径的固定映射
type Layout struct{}

// Files 返回条目对应的归档文件。ModelRef 每种格式一个，其余恰好一个
func (Layout) Files(e pipeline.Entry) []File {
	name := e.Name()
	switch a := e.Artifact.(type) {
	case types.Text:
		return []File{{Path: name + ".txt"}}
	case types.Script:
		ext := a.Extension
		if ext == "" {
			ext = "txt"
		}
		return []File{{Path: name + "." + ext}}
	case types.ImageRef:
		return []File{{Path: name + ".png"}}
	case types.ModelRef:
		files := make([]File, 0, len(a.Files))
		for _, f := range a.Files {
			files = append(files, File{Path: name + "." + f.Format, Format: f.Format})
		}
		return files
	case types.AudioRef:
		format := a.Format
		if format == "" {
			format = "mp3"
		}
		return []File{{Path: name + "." + format}}
	case types.Failure:
		return []File{{Path: ErrorPath(name)}}
	default:
		return []File{{Path: ErrorPath(name)}}
	}
}

// ErrorPath 失败或占位文件名
func ErrorPath(name string) string {
	return name + ".error.txt"
}
