// Package fileintegrity builds content manifests of directory trees and
// verifies trees against them to detect added, removed and changed files.
//
// # Core API
//
// A Builder walks a directory, hashes every regular file and returns a
// Manifest keyed by forward-slash relative path:
//
//	builder, err := fileintegrity.NewBuilder()
//	ignore := fileintegrity.NewIgnoreSet("secret.txt").WithManifest("manifest.json")
//	manifest, err := builder.Build("/path/to/dir", ignore)
//	err = fileintegrity.SaveManifest("manifest.json", manifest)
//
// Verification rebuilds the snapshot with the baseline's algorithm and the
// same ignore set, then classifies every path:
//
//	baseline, err := fileintegrity.LoadManifest("manifest.json")
//	report, err := builder.Verify("/path/to/dir", baseline, ignore)
//	if !report.IsClean() {
//		fmt.Printf("Found %d changes\n", report.TotalChanges())
//	}
//
// # Configuration
//
// Defaults can be read from an ini file with LoadConfig and passed to
// NewBuilderFromConfig. Debug output is controlled with:
//
//	fileintegrity.SetDebugFlags("scan,hash,verify")
//	fileintegrity.SetVerboseLevel(2)
//
// Errors wrap ErrFilesystem, ErrNotDirectory, ErrManifestNotFound,
// ErrManifestParse or ErrInterrupted and can be told apart with errors.Is.
package fileintegrity
