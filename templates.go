package main

import (
	"embed"
	"strings"
)

//go:embed templates/*
var templatesFS embed.FS

func getTemplate(name string, vars map[string]string) string {
	data, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		panic("template not found: " + name)
	}

	content := string(data)
	for key, value := range vars {
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content
}
