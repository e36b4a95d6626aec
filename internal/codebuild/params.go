package codebuild

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
)

// Inputs are the user-supplied overrides for a build
type Inputs struct {
	ProjectName                      string
	BuildspecOverride                string
	ComputeTypeOverride              string
	EnvironmentTypeOverride          string
	ImageOverride                    string
	ImagePullCredentialsTypeOverride string
	EnvPassthrough                   []string

	HideLogs              bool
	DisableSourceOverride bool
	DisableGithubEnvVars  bool
}

var imagePullCredentialsTypes = map[string]bool{
	"CODEBUILD":    true,
	"SERVICE_ROLE": true,
}

// githubEnvVars are always forwarded unless disabled
var githubEnvVars = []string{"GITHUB_REPOSITORY", "GITHUB_SHA"}

// ParseEnvPassthrough splits a comma separated list of variable names.
// Whitespace around names is trimmed and empty entries are dropped.
func ParseEnvPassthrough(raw ...string) []string {
	names := []string{}
	for _, chunk := range raw {
		for _, name := range strings.Split(chunk, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// SourceVersion returns the revision to build for the current CI event.
// Pull request events build the PR head, everything else builds the triggering SHA.
func SourceVersion(c ci.Context) string {
	if ci.IsPullRequest(c.EventName()) {
		return c.PullRequestHeadSHA()
	}
	return c.SHA()
}

// BuildParameters maps the CI context and user inputs into a validated BuildRequest
func BuildParameters(c ci.Context, in Inputs) (*BuildRequest, error) {
	projectName := strings.TrimSpace(in.ProjectName)
	if projectName == "" {
		return nil, validationErrorf("project-name", "Input required and not supplied: project-name")
	}

	if in.ImagePullCredentialsTypeOverride != "" && !imagePullCredentialsTypes[in.ImagePullCredentialsTypeOverride] {
		return nil, validationErrorf("image-pull-credentials-type-override",
			"invalid image pull credentials type %q: must be CODEBUILD or SERVICE_ROLE", in.ImagePullCredentialsTypeOverride)
	}

	owner, repo := c.Repository()
	sourceVersion := SourceVersion(c)

	req := &BuildRequest{
		ProjectName:                      projectName,
		BuildspecOverride:                in.BuildspecOverride,
		ComputeTypeOverride:              in.ComputeTypeOverride,
		EnvironmentTypeOverride:          in.EnvironmentTypeOverride,
		ImageOverride:                    in.ImageOverride,
		ImagePullCredentialsTypeOverride: in.ImagePullCredentialsTypeOverride,
		HideLogs:                         in.HideLogs,
		DisableSourceOverride:            in.DisableSourceOverride,
		DisableGithubEnvVars:             in.DisableGithubEnvVars,
	}

	if !in.DisableSourceOverride {
		if sourceVersion == "" {
			return nil, validationErrorf("source-version", "No source version could be evaluated.")
		}
		if owner == "" || repo == "" {
			return nil, validationErrorf("repository", "No repository could be evaluated.")
		}
		req.SourceVersion = sourceVersion
		req.SourceTypeOverride = SourceTypeGitHub
		req.SourceLocationOverride = fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	}

	req.EnvironmentVariables = environmentVariables(c, in, owner, repo)
	return req, nil
}

func environmentVariables(c ci.Context, in Inputs, owner, repo string) []EnvironmentVariable {
	vars := []EnvironmentVariable{}
	seen := make(map[string]bool)

	add := func(name, value string) {
		seen[name] = true
		vars = append(vars, EnvironmentVariable{Name: name, Value: value, Type: EnvVarTypePlaintext})
	}

	for _, name := range ParseEnvPassthrough(in.EnvPassthrough...) {
		if seen[name] {
			continue
		}
		if value, ok := c.LookupEnv(name); ok {
			add(name, value)
		}
	}

	if in.DisableGithubEnvVars {
		return vars
	}

	fallback := map[string]string{
		"GITHUB_SHA": c.SHA(),
	}
	if owner != "" && repo != "" {
		fallback["GITHUB_REPOSITORY"] = owner + "/" + repo
	}

	for _, name := range githubEnvVars {
		if seen[name] {
			continue
		}
		value, ok := c.LookupEnv(name)
		if !ok || value == "" {
			value = fallback[name]
		}
		if value != "" {
			add(name, value)
		}
	}
	return vars
}

// StartBuildInput converts the request into the CodeBuild API input
func (r *BuildRequest) StartBuildInput() *codebuild.StartBuildInput {
	input := &codebuild.StartBuildInput{
		ProjectName: aws.String(r.ProjectName),
	}

	if !r.DisableSourceOverride {
		input.SourceVersion = aws.String(r.SourceVersion)
		input.SourceTypeOverride = cbtypes.SourceType(r.SourceTypeOverride)
		input.SourceLocationOverride = aws.String(r.SourceLocationOverride)
	}

	if r.BuildspecOverride != "" {
		input.BuildspecOverride = aws.String(r.BuildspecOverride)
	}
	if r.ComputeTypeOverride != "" {
		input.ComputeTypeOverride = cbtypes.ComputeType(r.ComputeTypeOverride)
	}
	if r.EnvironmentTypeOverride != "" {
		input.EnvironmentTypeOverride = cbtypes.EnvironmentType(r.EnvironmentTypeOverride)
	}
	if r.ImageOverride != "" {
		input.ImageOverride = aws.String(r.ImageOverride)
	}
	if r.ImagePullCredentialsTypeOverride != "" {
		input.ImagePullCredentialsTypeOverride = cbtypes.ImagePullCredentialsType(r.ImagePullCredentialsTypeOverride)
	}

	for _, v := range r.EnvironmentVariables {
		input.EnvironmentVariablesOverride = append(input.EnvironmentVariablesOverride, cbtypes.EnvironmentVariable{
			Name:  aws.String(v.Name),
			Value: aws.String(v.Value),
			Type:  cbtypes.EnvironmentVariableType(v.Type),
		})
	}
	return input
}
