// Package filter selects which versions of each logical data file to keep.
//
// A file name such as mms1_fgm_srvy_l2_20151016_v4.18.0.cdf carries its logical
// identity (everything before "_v") and a version suffix (4.18.0). Files that
// share an identity are versions of the same product.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`(?i)^(.+)_v(\d+(?:\.\d+){0,2})\.cdf$`)

// Policy 描述版本选择方式，同一时间只应设置一种。
type Policy struct {
	// Version 精确匹配版本后缀，例如 "4.18.0"。
	Version string
	// Latest 为每个逻辑文件仅保留最高版本。
	Latest bool
	// Major 为每个逻辑文件保留最高主版本下的全部版本。
	Major bool
	// MinVersion 保留版本不低于该阈值的文件。
	MinVersion string
}

// ErrConflictingPolicy 表示同时设置了多种选择方式。
var ErrConflictingPolicy = errors.New("only one version selection mode may be set")

// Mode 返回生效的选择方式名称，按 exact → latest → major → min 的优先级。
func (p Policy) Mode() string {
	switch {
	case p.Version != "":
		return "exact"
	case p.Latest:
		return "latest"
	case p.Major:
		return "major"
	case p.MinVersion != "":
		return "min"
	default:
		return "none"
	}
}

// Validate 检查互斥性以及阈值能否解析。
func (p Policy) Validate() error {
	set := 0
	if p.Version != "" {
		set++
	}
	if p.Latest {
		set++
	}
	if p.Major {
		set++
	}
	if p.MinVersion != "" {
		set++
	}
	if set > 1 {
		return ErrConflictingPolicy
	}
	if p.MinVersion != "" {
		if _, err := semver.NewVersion(p.MinVersion); err != nil {
			return fmt.Errorf("invalid min version %q: %w", p.MinVersion, err)
		}
	}
	return nil
}

// File 是从文件名中拆出的身份与版本。
type File struct {
	Path     string
	Identity string
	Raw      string
	Version  *semver.Version
}

// Parse 解析路径末尾的文件名；没有可识别版本后缀时返回 false。
func Parse(p string) (File, bool) {
	m := versionPattern.FindStringSubmatch(baseName(p))
	if m == nil {
		return File{}, false
	}
	v, err := semver.NewVersion(m[2])
	if err != nil {
		return File{}, false
	}
	return File{Path: p, Identity: m[1], Raw: m[2], Version: v}, true
}

// Identity returns the file name with its version suffix stripped, or the bare
// file name when it carries no version.
func Identity(p string) string {
	if f, ok := Parse(p); ok {
		return f.Identity
	}
	return baseName(p)
}

// Apply 按 policy 过滤路径并返回排序后的结果。默认策略原样保留全部文件；
// 其余策略会丢弃无法解析版本的文件。结果为空不是错误。
func Apply(paths []string, policy Policy) []string {
	mode := policy.Mode()
	if mode == "none" {
		return sortedCopy(paths)
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		if f, ok := Parse(p); ok {
			files = append(files, f)
		}
	}

	var kept []File
	switch mode {
	case "exact":
		for _, f := range files {
			if f.Raw == policy.Version {
				kept = append(kept, f)
			}
		}
	case "latest":
		for _, group := range byIdentity(files) {
			best := group[0]
			for _, f := range group[1:] {
				if f.Version.GreaterThan(best.Version) {
					best = f
				}
			}
			kept = append(kept, best)
		}
	case "major":
		for _, group := range byIdentity(files) {
			var major uint64
			for _, f := range group {
				if f.Version.Major() > major {
					major = f.Version.Major()
				}
			}
			for _, f := range group {
				if f.Version.Major() == major {
					kept = append(kept, f)
				}
			}
		}
	case "min":
		threshold, err := semver.NewVersion(policy.MinVersion)
		if err != nil {
			return nil
		}
		for _, f := range files {
			if !f.Version.LessThan(threshold) {
				kept = append(kept, f)
			}
		}
	}

	out := make([]string, 0, len(kept))
	for _, f := range kept {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

func byIdentity(files []File) map[string][]File {
	groups := make(map[string][]File)
	for _, f := range files {
		groups[f.Identity] = append(groups[f.Identity], f)
	}
	return groups
}

func sortedCopy(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

func baseName(p string) string {
	if idx := strings.LastIndexAny(p, `/\`); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
