package deb

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldSource       ControlField = "Source"
	FieldPackage      ControlField = "Package"
	FieldVersion      ControlField = "Version"
	FieldArchitecture ControlField = "Architecture"
	FieldMaintainer   ControlField = "Maintainer"
	FieldSection      ControlField = "Section"
	FieldPriority     ControlField = "Priority"
	FieldHomepage     ControlField = "Homepage"
	FieldDepends      ControlField = "Depends"
	FieldConflicts    ControlField = "Conflicts"
	FieldDescription  ControlField = "Description"

	// FieldInstalledSize is derived from the staged data tree, never taken
	// from the package description.
	FieldInstalledSize ControlField = "Installed-Size"
)

// ControlFile represents a standard file found in the control.tar.gz archive.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileConffiles ControlFile = "conffiles"
	FilePostinst  ControlFile = "postinst"
	FileMd5sums   ControlFile = "md5sums"
)

// PackageFile represents a standard member of the .deb archive (ar format).
type PackageFile string

const (
	PkgDebianBinary PackageFile = "debian-binary"
	PkgControlTarGz PackageFile = "control.tar.gz"
	PkgDataTarGz    PackageFile = "data.tar.gz"

	// PkgGpgOrigin is the detached-signature member appended by debsigs-style
	// package signing.
	PkgGpgOrigin PackageFile = "_gpgorigin"
)

// debianBinaryContent is the fixed content of the debian-binary member.
// dpkg refuses anything else for format 2.0 archives.
const debianBinaryContent = "2.0\n"
