package common

// EsoccVersion is the current compiler version as a string.
const EsoccVersion string = "0.3.0"

// ProfileFileName is the name of the optional build profile file.
const ProfileFileName string = "esocc.toml"

// File extensions used by the toolchain.
const (
	AsmFileExt    string = ".s"
	ObjectFileExt string = ".o"
	BinaryFileExt string = ".bin"
	IRFileExt     string = ".ir"
	LLVMFileExt   string = ".ll"
)

// DefaultOutputName is the output base name used when none is given.
const DefaultOutputName string = "out"
