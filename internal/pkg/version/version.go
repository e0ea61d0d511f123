// Package version 애플리케이션의 빌드 정보를 관리합니다.
//
// 버전, 커밋 해시, 빌드 시각은 빌드 시점에 ldflags를 통해 주입되며,
// 주입되지 않은 항목은 runtime/debug의 빌드 정보로 보완됩니다.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
)

// 빌드 시점에 ldflags로 주입되는 변수들
//
//	go build -ldflags "-X .../internal/pkg/version.version=v1.0.0 ..."
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// Info 애플리케이션의 빌드 정보입니다.
type Info struct {
	Version   string // 버전 (예: v1.0.0)
	GitCommit string // Git 커밋 해시
	BuildTime string // 빌드 시각
	GoVersion string // 빌드에 사용된 Go 버전
	OS        string // 대상 운영체제
	Arch      string // 대상 아키텍처
}

var globalBuildInfo atomic.Value

func init() {
	globalBuildInfo.Store(enrichBuildInfo(Info{
		Version:   version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}))
}

// enrichBuildInfo ldflags로 주입되지 않은 항목을 바이너리에 포함된 빌드 정보로 보완합니다.
func enrichBuildInfo(info Info) Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		info.Version = buildInfo.Main.Version
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = setting.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = setting.Value
			}
		}
	}

	return info
}

// Get 현재 빌드 정보를 반환합니다.
func Get() Info {
	return globalBuildInfo.Load().(Info)
}

// Version 애플리케이션 버전을 반환합니다.
func Version() string {
	return Get().Version
}

// ToMap 빌드 정보를 map 형태로 변환합니다. (API 응답용)
func (i Info) ToMap() map[string]string {
	return map[string]string{
		"version":    i.Version,
		"git_commit": i.GitCommit,
		"build_time": i.BuildTime,
		"go_version": i.GoVersion,
		"os":         i.OS,
		"arch":       i.Arch,
	}
}

// String 빌드 정보를 한 줄 문자열로 변환합니다. (로그 출력용)
func (i Info) String() string {
	return fmt.Sprintf("version=%s, commit=%s, built=%s, go=%s, platform=%s/%s",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.OS, i.Arch)
}
