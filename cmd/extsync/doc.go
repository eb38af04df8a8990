// Command extsync syncs editor extensions published as VSIX files in GitLab
// generic package registries.
//
// Usage:
//
//	# Store the registry access token (read from stdin when --token is omitted)
//	extsync token set
//
//	# Add a registry endpoint to the settings file
//	extsync registry add https://gitlab.example.com/api/v4/projects/42/packages
//
//	# Show the catalog, install and update
//	extsync list
//	extsync install publisher.name
//	extsync update
//
//	# Run the daemon with the HTTP API and websocket feed
//	extsync serve
//
// Configuration comes from EXTSYNC_* environment variables; the settings file
// (package_urls, auto_update, artifact_pattern) lives in the user config
// directory unless EXTSYNC_SETTINGS_FILE says otherwise.
//
// Signals:
//   - SIGINT, SIGTERM: cancel the running command or shut the daemon down
package main
