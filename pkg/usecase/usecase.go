package usecase

import (
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/interfaces"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
)

type UseCases struct {
	repo interfaces.Repository

	Dispatch    *DispatchUseCase
	Interaction *InteractionUseCase
}

func New(repo interfaces.Repository, slackSvc slack.Service, n *notifier.Notifier) *UseCases {
	return &UseCases{
		repo:        repo,
		Dispatch:    NewDispatchUseCase(repo, n),
		Interaction: NewInteractionUseCase(repo, slackSvc, n),
	}
}
