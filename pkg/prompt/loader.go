// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// Load загружает и парсит YAML файл промптов
func Load(path string) (*PromptFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	return &pf, nil
}

// Render возвращает копию с подставленными {{.Field}}.
func (pf *PromptFile) Render(vars Vars) (PromptFile, error) {
	system, err := render("system", pf.System, vars)
	if err != nil {
		return PromptFile{}, err
	}
	toolsSystem, err := render("tools_system", pf.ToolsSystem, vars)
	if err != nil {
		return PromptFile{}, err
	}
	return PromptFile{System: system, ToolsSystem: toolsSystem}, nil
}

func render(name, text string, vars Vars) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("template parse error in %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("template execute error in %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
