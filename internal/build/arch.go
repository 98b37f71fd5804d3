// Completion: 100% - Host platform defaults
package build

import "runtime"

// OS is the platform family the host C toolchain produces executables for.
type OS int

const (
	OSUnix OS = iota
	OSWindows
)

func (o OS) String() string {
	if o == OSWindows {
		return "windows"
	}
	return "unix"
}

// HostOS returns the OS the translator runs on. The C toolchain is always
// the host's, so this is also the target OS.
func HostOS() OS {
	if runtime.GOOS == "windows" {
		return OSWindows
	}
	return OSUnix
}

// DefaultArtifact is the file name a C compiler writes when not given -o.
func (o OS) DefaultArtifact() string {
	if o == OSWindows {
		return "a.exe"
	}
	return "a.out"
}
