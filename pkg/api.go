package fileintegrity

// This file holds the two whole-run operations the fic command exposes.

// InitManifest builds a manifest of root and saves it to manifestPath. The
// manifest's own file name is always excluded; ignore itself is not
// modified.
func (b *Builder) InitManifest(root, manifestPath string, ignore *IgnoreSet) (*Manifest, error) {
	defer VerboseEnter()()

	ignore = ignore.Clone().WithManifest(manifestPath)

	manifest, err := b.Build(root, ignore)
	if err != nil {
		return nil, err
	}
	if err := SaveManifest(manifestPath, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// VerifyManifest loads the baseline at manifestPath and verifies root
// against it. The manifest's own file name is always excluded.
func (b *Builder) VerifyManifest(root, manifestPath string, ignore *IgnoreSet) (*Report, error) {
	defer VerboseEnter()()

	ignore = ignore.Clone().WithManifest(manifestPath)

	baseline, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return b.Verify(root, baseline, ignore)
}
