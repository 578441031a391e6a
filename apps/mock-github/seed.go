package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the shape of SEED_FILE:
//
//	repos:
//	  alice/docs:
//	    README.md: "# Docs"
//	    notes/a.md: hello
type seedFile struct {
	Repos map[string]map[string]string `yaml:"repos"`
}

// seedRepos loads the built-in repositories, then the optional YAML file.
func seedRepos(s *store, file string) error {
	seedBuiltin(s)
	if file == "" {
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed file %s: %w", file, err)
	}
	for repo, files := range sf.Repos {
		for path, content := range files {
			s.put(repo, path, content)
		}
	}
	return nil
}

func seedBuiltin(s *store) {
	s.put("acme/handbook", "README.md", "# Acme Handbook\n\nStart with [onboarding](onboarding/index.md).\n")
	s.put("acme/handbook", "onboarding/index.md", onboarding)
	s.put("acme/handbook", "onboarding/tools.md", tools)
	s.put("acme/handbook", "engineering/review.md", review)
	s.put("acme/handbook", "engineering/oncall/runbook.md", runbook)
	s.put("acme/handbook", "engineering/oncall/empty.md", "")
	s.put("acme/handbook", "assets/logo.svg", `<svg xmlns="http://www.w3.org/2000/svg"/>`)

	s.put("acme/service", "main.go", "package main\n\nfunc main() {}\n")
	s.put("acme/service", "go.mod", "module acme/service\n")
}

const onboarding = `# Onboarding

Welcome to Acme.

1. Get a laptop.
2. Read the [tools](tools.md) page.
3. Ship something in week one.
`

const tools = "# Tools\n\n| Tool | Purpose |\n|------|---------|\n| git | source control |\n| make | builds |\n"

const review = `# Code review

- Keep changes small.
- Reviewers answer within one working day.

` + "```go\nif err != nil {\n\treturn err\n}\n```\n"

const runbook = `# On-call runbook

## Paging

Acknowledge within five minutes.

## Escalation

Page the secondary after 15 minutes.
`
