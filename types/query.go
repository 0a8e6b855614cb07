package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type QuestionParams struct {
	Question string `json:"question" validate:"required"`
}

type ChatParams struct {
	Messages []ConversationTurn `json:"messages" validate:"required,min=1,dive"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QuestionParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// QAResponse mirrors the qa endpoint contract: a generation failure does not
// fail the request, it is reported alongside the retrieved results.
type QAResponse struct {
	Results     []RetrievedChunk `json:"results"`
	Answer      *Answer          `json:"answer"`
	AnswerError string           `json:"answerError,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
