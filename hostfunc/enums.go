package hostfunc

import "fmt"

// LogLevel is the severity a guest passes to log.
type LogLevel int32

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

// ParseLogLevel maps a guest-supplied ordinal onto a LogLevel.
func ParseLogLevel(v int32) (LogLevel, bool) {
	if v < int32(LogTrace) || v > int32(LogError) {
		return LogInfo, false
	}
	return LogLevel(v), true
}

func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "trace"
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return fmt.Sprintf("loglevel(%d)", int32(l))
	}
}

// ToastLevel is the visual severity of a toast notification.
type ToastLevel int32

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastWarning
	ToastError
)

// ParseToastLevel maps a guest-supplied ordinal onto a ToastLevel.
func ParseToastLevel(v int32) (ToastLevel, bool) {
	if v < int32(ToastInfo) || v > int32(ToastError) {
		return ToastInfo, false
	}
	return ToastLevel(v), true
}

func (l ToastLevel) String() string {
	switch l {
	case ToastInfo:
		return "info"
	case ToastSuccess:
		return "success"
	case ToastWarning:
		return "warning"
	case ToastError:
		return "error"
	default:
		return fmt.Sprintf("toastlevel(%d)", int32(l))
	}
}

func (l ToastLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Region is one of the fixed UI areas a widget can be registered into.
type Region int32

const (
	RegionHeader Region = iota
	RegionFooter
	RegionSidebarLeft
	RegionSidebarRight
	RegionMainContent
	RegionInputArea
	RegionOverlay
	RegionStatusBar
	RegionToolOutput
	RegionMessageArea
)

var regionNames = [...]string{
	RegionHeader:       "header",
	RegionFooter:       "footer",
	RegionSidebarLeft:  "sidebar-left",
	RegionSidebarRight: "sidebar-right",
	RegionMainContent:  "main-content",
	RegionInputArea:    "input-area",
	RegionOverlay:      "overlay",
	RegionStatusBar:    "status-bar",
	RegionToolOutput:   "tool-output",
	RegionMessageArea:  "message-area",
}

// ParseRegion maps a guest-supplied ordinal onto a Region. There is no
// fallback: an unknown ordinal is always rejected.
func ParseRegion(v int32) (Region, bool) {
	if v < 0 || int(v) >= len(regionNames) {
		return 0, false
	}
	return Region(v), true
}

// Regions returns every defined region in ordinal order.
func Regions() []Region {
	out := make([]Region, len(regionNames))
	for i := range regionNames {
		out[i] = Region(i)
	}
	return out
}

func (r Region) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("region(%d)", int32(r))
	}
	return regionNames[r]
}

func (r Region) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
