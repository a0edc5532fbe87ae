// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	BuildFileNotFoundId Id = iota + 1
	BuildFileParseErrorId
	ManifestNotFoundId
	ManifestParseErrorId
	MissingDependenciesId
	ValidationFailedId
	CompatCheckFailedId
	TestsFailedId
	SigningFailedId
	InstallFailedId
	PublishFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	buildFileNotFoundIssue = &Issue{
		id: BuildFileNotFoundId,
		mdMsg: `
# No forge.cue found!

We searched for a build file but couldn't find one in the project directory.

## Things you can try:
- Create a build file in your project root:
~~~
$ modforge init
~~~

- Or point at the project explicitly:
~~~
$ modforge build --project /path/to/your/module
~~~

## Example forge.cue structure:
~~~cue
name: "mymodule"
segments: [
	{kind: "metadata", description: "My shell module"},
	{kind: "build", merge_sources: true},
	{kind: "validation", severity: "error"},
]
~~~`,
	}

	buildFileParseErrorIssue = &Issue{
		id: BuildFileParseErrorId,
		mdMsg: `
# Failed to parse forge.cue!

Your build file contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- A segment without a valid ` + "`kind`" + ` discriminator
- Unknown field names inside a segment
- Invalid values for known fields (e.g. an unsupported artefact format)

## Things you can try:
- Check the error message above for the offending field path
- Validate your CUE syntax using the cue command-line tool
- Compare against a minimal working build file:
~~~cue
name: "mymodule"
segments: [
	{kind: "build"},
]
~~~`,
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No module manifest found!

The project has no module.manifest file, so the module's name, version,
and exports cannot be determined.

## Things you can try:
- Create a manifest in your project root:
~~~
$ modforge manifest init
~~~

- Minimal manifest:
~~~
name    = 'mymodule'
version = '1.0.0'
~~~`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse the module manifest!

The manifest's hashtable literal could not be read.

## Common issues:
- Unbalanced quotes or braces
- A key assigned twice at the same level
- An array written without commas between elements

## Things you can try:
- Check the error message above for the line number
- Inspect the manifest:
~~~
$ modforge manifest get version
~~~`,
	}

	missingDependenciesIssue = &Issue{
		id: MissingDependenciesId,
		mdMsg: `
# Dependencies not satisfied!

The build cannot continue because declared dependencies are missing.

## Things you can try:
- Install the missing modules or tools listed above
- Check that hinted commands are in your PATH
- Mark command hints as optional when the module degrades gracefully:
~~~cue
{kind: "commands", commands: ["git"], ignore_missing: true}
~~~`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Module validation failed!

The staged module does not have the expected structure.

## Common causes:
- Entry script missing or unreadable
- Manifest fields out of sync with the project
- Declared exports that no script defines

## Things you can try:
- Review the findings listed above
- Downgrade the gate to a warning while you iterate:
~~~cue
{kind: "validation", severity: "warning"}
~~~`,
	}

	compatCheckFailedIssue = &Issue{
		id: CompatCheckFailedId,
		mdMsg: `
# Shell compatibility check failed!

One or more scripts do not parse under a required shell dialect.

## Things you can try:
- Review the findings above for the offending construct
- Restrict the dialect list to what your scripts actually target:
~~~cue
{kind: "compat", dialects: ["bash"]}
~~~
- Rewrite bashisms (arrays, [[ ]], local) for POSIX targets`,
	}

	testsFailedIssue = &Issue{
		id: TestsFailedId,
		mdMsg: `
# Functional tests failed!

One or more test scripts exited non-zero.

## Things you can try:
- Run the failing script directly to see its output
- Keep the staging directory to inspect the tested tree:
~~~cue
{kind: "build", keep_staging: true}
~~~
- Suffix a test script with .skip.sh to park it temporarily`,
	}

	signingFailedIssue = &Issue{
		id: SigningFailedId,
		mdMsg: `
# Script signing failed!

The signing tool rejected one or more staged scripts.

## Common causes:
- The signing command is not installed or not in PATH
- The identity named in sign_identity does not exist
- The key store is locked

## Things you can try:
- Verify the identity:
~~~cue
{kind: "build", sign_identity: "release-key"}
~~~
- Remove sign_identity to skip signing during development`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Module install failed!

The packaged module could not be placed into any install root.

## Common causes:
- No install root is writable
- A root path exists but is a file, not a directory
- The version directory is held open by another process

## Things you can try:
- Check permissions on your module roots
- Override the roots for this run:
~~~cue
{kind: "install", roots: ["/tmp/modules"]}
~~~
- Disable installing while iterating:
~~~cue
{kind: "install", enabled: false}
~~~`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# Publish failed!

The artefact could not be pushed to the repository.

## Common causes:
- No credential entry for the configured credential key
- The repository URL is unreachable
- The repository rejected the upload (authentication, quota, duplicate)

## Things you can try:
- Add the credential to your credentials file:
~~~toml
[gallery]
username = "me"
token    = "..."
~~~
- Check the repository URL in the publish segment`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the modforge configuration file.

## Configuration file locations:
- Linux: ~/.config/modforge/config.cue
- macOS: ~/Library/Application Support/modforge/config.cue
- Windows: %APPDATA%\modforge\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ modforge config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults

## Example configuration:
~~~cue
keep_count: 3
install_roots: [
	"/home/user/.local/share/modforge/modules",
]

ui: {
	color_scheme: "auto"
	verbose: false
}
~~~`,
	}

	issues = map[Id]*Issue{
		buildFileNotFoundIssue.Id():   buildFileNotFoundIssue,
		buildFileParseErrorIssue.Id(): buildFileParseErrorIssue,
		manifestNotFoundIssue.Id():    manifestNotFoundIssue,
		manifestParseErrorIssue.Id():  manifestParseErrorIssue,
		missingDependenciesIssue.Id(): missingDependenciesIssue,
		validationFailedIssue.Id():    validationFailedIssue,
		compatCheckFailedIssue.Id():   compatCheckFailedIssue,
		testsFailedIssue.Id():         testsFailedIssue,
		signingFailedIssue.Id():       signingFailedIssue,
		installFailedIssue.Id():       installFailedIssue,
		publishFailedIssue.Id():       publishFailedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
