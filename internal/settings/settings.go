package settings

import "fmt"

const CmdName = "captrace"

var (
	DefaultCaptureFile = fmt.Sprintf("%s.capture", CmdName)
)
