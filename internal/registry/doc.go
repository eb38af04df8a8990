// Package registry is the client for GitLab-style generic package registries.
//
// Operations:
//   - ListPackages: every package version under an endpoint (paged)
//   - ListFiles: files attached to one package version (paged)
//   - ResolveRegistryName: display name of the endpoint's parent project
//   - OpenArtifact: stream {endpoint}/generic/{id}/{version}/{file}
//
// Every request carries the token held by Credentials, read per call, either
// as a PRIVATE-TOKEN header or as a bearer token. Requests go through a
// retrying transport (go-retryablehttp), a shared rate limiter and a circuit
// breaker per registry host. Failures are faults.KindTransport; 401 and 403
// responses additionally carry faults.KindAuth.
//
// Example Usage:
//
//	creds := registry.NewCredentials()
//	creds.Set(token)
//	client := registry.NewClient(cfg.Registry, creds, logger, metrics)
//	pkgs, err := client.ListPackages(ctx, "https://gitlab.example.com/api/v4/projects/42/packages")
package registry
