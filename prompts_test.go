package main

import (
	"strings"
	"testing"
)

func TestGetPromptSubstitutesVars(t *testing.T) {
	prompt := getPrompt("interpret", map[string]string{
		"contexts": joinContexts(),
	})

	if strings.Contains(prompt, "{{contexts}}") {
		t.Error("placeholder should be substituted")
	}
	if !strings.Contains(prompt, "pastOrders") {
		t.Error("context list missing from the prompt")
	}
	if !strings.Contains(prompt, "JSON") {
		t.Error("the prompt should demand JSON output")
	}
}

func TestGetPromptUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unknown prompt should panic")
		}
	}()
	getPrompt("does-not-exist", nil)
}

func TestGetTemplateSpecHeader(t *testing.T) {
	header := getTemplate("spec-header.ts", map[string]string{"context": "ordersHub"})

	if !strings.Contains(header, "ordersHub") {
		t.Error("context placeholder should be substituted")
	}
	if !strings.Contains(header, "@playwright/test") {
		t.Error("header should import the test framework")
	}
}

func TestGetTemplateWorkflow(t *testing.T) {
	workflow := getTemplate("workflow.yml", map[string]string{"baseBranch": "develop"})

	if !strings.Contains(workflow, "branches: [develop]") {
		t.Error("base branch placeholder should be substituted")
	}
	if !strings.Contains(workflow, "playwright") {
		t.Error("workflow should run the test suite")
	}
	if !strings.Contains(workflow, `--grep "$TICKET"`) {
		t.Error("generated branches should run only the ticket's test")
	}
	if !strings.Contains(workflow, "gh pr ready") {
		t.Error("workflow should promote the pull request on success")
	}
}
