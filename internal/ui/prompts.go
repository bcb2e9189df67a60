package ui

import (
	"github.com/AlecAivazis/survey/v2"
)

// Select prompts for one of options, preselecting def when present.
func Select(message string, options []string, def string) (string, error) {
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if def != "" {
		prompt.Default = def
	}
	var answer string
	err := survey.AskOne(prompt, &answer)
	return answer, err
}

// Input prompts for a line of text.
func Input(message, def string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer)
	return answer, err
}

// Password prompts for a secret without echoing it.
func Password(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Password{Message: message}, &answer)
	return answer, err
}

// Confirm prompts yes/no.
func Confirm(message string, def bool) (bool, error) {
	answer := def
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer)
	return answer, err
}
