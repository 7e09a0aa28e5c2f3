package version

var (
	Program   = "statica"
	Version   = "v0.5.0-dev"
	GitCommit = "HEAD"
)
