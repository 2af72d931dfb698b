package codes

// ExitCodes maps container and toolchain exit codes to their descriptions
var ExitCodes = map[int]string{
	0:   "Success",
	1:   "Build failed",
	2:   "Invalid command usage",
	125: "Container runtime failed to start the container",
	126: "Command inside the container could not be invoked",
	127: "Command not found inside the container",
	130: "Build interrupted (SIGINT)",
	137: "Build process killed (SIGKILL, possibly out of memory)",
	139: "Build process crashed (segmentation fault)",
	143: "Build process terminated (SIGTERM)",
}

// IsSuccess returns true if the exit code indicates a successful build
func IsSuccess(code int) bool {
	return code == 0
}

// IsKilled returns true if the exit code means the process was killed by a signal
func IsKilled(code int) bool {
	return code == 130 || code == 137 || code == 143
}

// GetErrorMessage returns the description for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
