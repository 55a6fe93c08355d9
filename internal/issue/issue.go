// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	FedfileNotFoundId Id = iota + 1
	FedfileParseErrorId
	RemoteUnreachableId
	ManifestInvalidId
	ModuleNotExposedId
	ChunkDigestMismatchId
	SharedVersionConflictId
	RemoteCycleId
	ConfigLoadFailedId
	PortInUseId
	BuildFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation links, if any
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

	fedfileNotFoundIssue = &Issue{
		id: FedfileNotFoundId,
		mdMsg: `
# No fedfile found!

We searched for a fedfile.cue but couldn't find one.

## Things you can try:
- Create a fedfile in your current directory:
~~~
$ fedkit init
~~~

- Or run from the directory that has one:
~~~
$ cd /path/to/your/app
$ fedkit validate
~~~

## Example fedfile structure:
~~~cue
name: "cart"
role: "remote"

exposes: [
  {name: "Cart", path: "cart.js"},
]
~~~`,
	}

	fedfileParseErrorIssue = &Issue{
		id: FedfileParseErrorId,
		mdMsg: `
# Failed to parse fedfile!

Your fedfile contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- An app name that isn't lowercase alphanumeric
- A shared requirement that isn't "1.2.3", "^1.2.3", or "~1.2.3"

## Things you can try:
- Check the error message above for the specific line/column
- Validate the file without serving:
~~~
$ fedkit validate
~~~`,
	}

	remoteUnreachableIssue = &Issue{
		id: RemoteUnreachableId,
		mdMsg: `
# Remote unreachable!

A remote's dev server didn't answer, so its manifest and modules are
unavailable.

## Things you can try:
- Start the remote's dev server:
~~~
$ cd /path/to/remote && fedkit serve
~~~

- Check the remote's URL in your fedfile matches the port it serves on
- Probe the remote directly:
~~~
$ fedkit remotes
~~~

Module loads retry with exponential backoff, so a remote that comes up
within a few seconds will still resolve.`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid remote entry manifest!

A remote answered, but its /remote-entry.json was malformed or has a
schema version this build doesn't understand.

## Things you can try:
- Make sure the remote is a fedkit dev server, not some other process
  squatting on the port
- Update both host and remote to the same fedkit release
- Inspect the manifest directly:
~~~
$ curl http://127.0.0.1:4174/remote-entry.json
~~~`,
	}

	moduleNotExposedIssue = &Issue{
		id: ModuleNotExposedId,
		mdMsg: `
# Module not exposed!

The remote is up, but its manifest doesn't list the module you asked for.

## Things you can try:
- List what the remote actually exposes:
~~~
$ fedkit inspect <remote-url>
~~~

- Check for typos in the module reference (they are case-sensitive)
- Add the module to the remote's fedfile:
~~~cue
exposes: [
  {name: "Cart", path: "cart.js"},
]
~~~`,
	}

	chunkDigestMismatchIssue = &Issue{
		id: ChunkDigestMismatchId,
		mdMsg: `
# Chunk digest mismatch!

The bytes fetched for a module don't match the digest its manifest
declared. The chunk was rebuilt after the manifest was generated, or
something between host and remote corrupted it.

## Things you can try:
- Re-sync so the host picks up the current manifest:
~~~
$ fedkit load <remote>/<Module>
~~~

- Restart the remote's dev server so manifest and dist dir agree
- If you proxy remote traffic, check the proxy isn't rewriting bodies`,
	}

	sharedVersionConflictIssue = &Issue{
		id: SharedVersionConflictId,
		mdMsg: `
# Shared dependency conflict!

No offered version of a shared singleton dependency satisfies every
participant's strict requirement.

## Things you can try:
- See every participant's terms:
~~~
$ fedkit remotes --shared
~~~

- Align the requirement ranges across the fedfiles
- Drop strict_version on participants that can tolerate a mismatch
- Make the dependency non-singleton so each app bundles its own copy`,
	}

	remoteCycleIssue = &Issue{
		id: RemoteCycleId,
		mdMsg: `
# Remote dependency cycle detected!

Following the remotes declared by each manifest leads back to where it
started. A cyclic federation graph cannot be synced.

## Example of a cycle:
~~~
shell -> cart -> shell
~~~

## Things you can try:
- Remove the remote reference that closes the loop
- Extract the modules both sides need into a third remote they share`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the fedkit configuration file.

## Configuration file locations:
- Linux: ~/.config/fedkit/config.cue
- macOS: ~/Library/Application Support/fedkit/config.cue
- Windows: %APPDATA%\fedkit\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ fedkit config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults

## Example configuration:
~~~cue
serve: port: 4174

loader: {
  max_retries: 3
  base_delay_ms: 1000
}

ui: color_scheme: "auto"
~~~`,
	}

	portInUseIssue = &Issue{
		id: PortInUseId,
		mdMsg: `
# Port already in use!

The dev server couldn't bind its port; another process holds it.

## Things you can try:
- Find what holds the port:
~~~
$ lsof -i :4174
~~~

- Pick another port in your fedfile:
~~~cue
serve: port: 4175
~~~

- Or pass one on the command line:
~~~
$ fedkit serve --port 4175
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Build script failed!

The fedfile's build script exited non-zero, so the dist dir (and with it
the manifest) could not be produced.

## Things you can try:
- Run the script by hand in the fedfile's directory and read its output
- Check the tools it calls are installed and on PATH
- The script runs in a built-in POSIX shell; bashisms may not work`,
	}

	issues = map[Id]*Issue{
		fedfileNotFoundIssue.Id():       fedfileNotFoundIssue,
		fedfileParseErrorIssue.Id():     fedfileParseErrorIssue,
		remoteUnreachableIssue.Id():     remoteUnreachableIssue,
		manifestInvalidIssue.Id():       manifestInvalidIssue,
		moduleNotExposedIssue.Id():      moduleNotExposedIssue,
		chunkDigestMismatchIssue.Id():   chunkDigestMismatchIssue,
		sharedVersionConflictIssue.Id(): sharedVersionConflictIssue,
		remoteCycleIssue.Id():           remoteCycleIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		portInUseIssue.Id():             portInUseIssue,
		buildFailedIssue.Id():           buildFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
