// Package categories ships the function-name -> category mapping as data,
// not code (spec §9 "Category mapping as data"), mirroring the teacher's
// curated internal/analysis/known_functions.go tables. It also names the
// curated "activity" subfamily (spec §4.5) the aggregator unions over.
package categories

// MappingVersion is embedded in the report's version string so a report is
// interpretable against the exact mapping it was produced with (spec §9).
const MappingVersion = "categories-v1"

// Category is a function-name category token, substituted for an
// identifier by the Token Projector (spec §4.4).
type Category string

const (
	CategoryFilesystemAccess  Category = "filesystem_access"
	CategoryNetworkRequest    Category = "network_request"
	CategoryProcessManagement Category = "process_management"
	CategoryDeserialization   Category = "deserialization"
	CategoryEncodeDecode      Category = "encode_decode"
	CategoryPackageExecution  Category = "package_install_exec"
	CategoryFsLinking         Category = "fs_linking"
	CategorySystemInteraction Category = "system_interaction"
	CategoryUserIO            Category = "user_io"
	CategoryArchiveCompress   Category = "archive_compression"
	CategoryDynamicCodeExec   Category = "dynamic_code_exec"
)

// Activities is the curated subfamily of categories that names a behavior
// surfaced in the report's activity summary (spec §4.5, §GLOSSARY).
var Activities = map[Category]bool{
	CategoryFilesystemAccess:  true,
	CategoryNetworkRequest:    true,
	CategoryProcessManagement: true,
	CategoryPackageExecution:  true,
	CategoryFsLinking:         true,
	CategorySystemInteraction: true,
	CategoryDynamicCodeExec:   true,
}

// IsActivity reports whether token is one of the curated activity tokens.
func IsActivity(token string) bool {
	return Activities[Category(token)]
}

// FunctionCategory maps a lowercased "<module>.<function>" or bare builtin
// name to its category. Only entries with a clear, high-confidence security
// meaning are included; everything else is left unmapped and falls through
// to verbatim/size-bucket token emission.
var FunctionCategory = map[string]Category{
	// --- filesystem access ---
	"os.remove":        CategoryFilesystemAccess,
	"os.unlink":        CategoryFilesystemAccess,
	"os.rmdir":         CategoryFilesystemAccess,
	"os.rename":        CategoryFilesystemAccess,
	"os.chmod":         CategoryFilesystemAccess,
	"os.chown":         CategoryFilesystemAccess,
	"os.walk":          CategoryFilesystemAccess,
	"os.listdir":       CategoryFilesystemAccess,
	"open":             CategoryFilesystemAccess,
	"shutil.copy":      CategoryFilesystemAccess,
	"shutil.copytree":  CategoryFilesystemAccess,
	"shutil.rmtree":    CategoryFilesystemAccess,
	"shutil.move":      CategoryFilesystemAccess,
	"pathlib.path":     CategoryFilesystemAccess,
	"fs.readfile":      CategoryFilesystemAccess,
	"fs.writefile":     CategoryFilesystemAccess,
	"fs.unlink":        CategoryFilesystemAccess,
	"fs.readfilesync":  CategoryFilesystemAccess,
	"fs.writefilesync": CategoryFilesystemAccess,
	"fs.rmdir":         CategoryFilesystemAccess,
	"fs.rm":            CategoryFilesystemAccess,

	// --- network request ---
	"requests.get":        CategoryNetworkRequest,
	"requests.post":       CategoryNetworkRequest,
	"requests.put":        CategoryNetworkRequest,
	"requests.request":    CategoryNetworkRequest,
	"urllib.request.urlopen": CategoryNetworkRequest,
	"httpx.get":            CategoryNetworkRequest,
	"httpx.post":           CategoryNetworkRequest,
	"socket.socket":        CategoryNetworkRequest,
	"socket.connect":       CategoryNetworkRequest,
	"ftplib.ftp":           CategoryNetworkRequest,
	"fetch":                CategoryNetworkRequest,
	"axios.get":            CategoryNetworkRequest,
	"axios.post":           CategoryNetworkRequest,
	"http.request":         CategoryNetworkRequest,
	"https.request":        CategoryNetworkRequest,
	"xmlhttprequest":       CategoryNetworkRequest,
	"net.connect":          CategoryNetworkRequest,

	// --- process management ---
	"os.system":              CategoryProcessManagement,
	"os.popen":               CategoryProcessManagement,
	"os.spawnl":               CategoryProcessManagement,
	"os.exec":                 CategoryProcessManagement,
	"subprocess.run":          CategoryProcessManagement,
	"subprocess.call":         CategoryProcessManagement,
	"subprocess.popen":        CategoryProcessManagement,
	"subprocess.check_output":  CategoryProcessManagement,
	"child_process.exec":       CategoryProcessManagement,
	"child_process.spawn":      CategoryProcessManagement,
	"child_process.execsync":   CategoryProcessManagement,
	"child_process.spawnsync":  CategoryProcessManagement,

	// --- deserialization ---
	"pickle.load":    CategoryDeserialization,
	"pickle.loads":   CategoryDeserialization,
	"cpickle.load":   CategoryDeserialization,
	"cpickle.loads":  CategoryDeserialization,
	"yaml.load":      CategoryDeserialization,
	"marshal.loads":  CategoryDeserialization,
	"json.parse":     CategoryDeserialization,
	"shelve.open":    CategoryDeserialization,

	// --- encode/decode ---
	"base64.b64decode": CategoryEncodeDecode,
	"base64.b64encode": CategoryEncodeDecode,
	"base64.decode":    CategoryEncodeDecode,
	"codecs.decode":    CategoryEncodeDecode,
	"codecs.encode":    CategoryEncodeDecode,
	"atob":             CategoryEncodeDecode,
	"btoa":             CategoryEncodeDecode,
	"buffer.from":      CategoryEncodeDecode,

	// --- package install & execution ---
	"pip.main":      CategoryPackageExecution,
	"pip.install":   CategoryPackageExecution,
	"setuptools.setup": CategoryPackageExecution,
	"npm.install":   CategoryPackageExecution,
	"importlib.import_module": CategoryPackageExecution,
	"__import__": CategoryPackageExecution,

	// --- fs linking ---
	"os.symlink": CategoryFsLinking,
	"os.link":    CategoryFsLinking,
	"fs.symlink": CategoryFsLinking,
	"fs.link":    CategoryFsLinking,

	// --- system interaction ---
	"os.environ":   CategorySystemInteraction,
	"os.getenv":    CategorySystemInteraction,
	"os.setuid":    CategorySystemInteraction,
	"os.setgid":    CategorySystemInteraction,
	"sys.exit":     CategorySystemInteraction,
	"platform.system": CategorySystemInteraction,
	"process.env":  CategorySystemInteraction,
	"process.exit": CategorySystemInteraction,

	// --- user io ---
	"input":         CategoryUserIO,
	"print":         CategoryUserIO,
	"console.log":   CategoryUserIO,
	"sys.stdin.read": CategoryUserIO,

	// --- archive compression ---
	"zipfile.zipfile": CategoryArchiveCompress,
	"tarfile.open":    CategoryArchiveCompress,
	"gzip.open":       CategoryArchiveCompress,
	"zlib.compress":   CategoryArchiveCompress,

	// --- dynamic code execution ---
	"eval":             CategoryDynamicCodeExec,
	"exec":             CategoryDynamicCodeExec,
	"compile":          CategoryDynamicCodeExec,
	"function":         CategoryDynamicCodeExec, // `new Function(...)`
	"globals":          CategoryDynamicCodeExec,
	"setattr":          CategoryDynamicCodeExec,
	"vm.runinnewcontext": CategoryDynamicCodeExec,
}

// Lookup returns the category for a lowercased dotted function reference
// or bare builtin name. It matches the full string exactly; the trailing
// name of a dotted path is not looked up on its own.
func Lookup(name string) (Category, bool) {
	cat, ok := FunctionCategory[name]
	return cat, ok
}
