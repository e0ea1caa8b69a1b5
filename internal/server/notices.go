package server

import (
	"errors"
	"net/http"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// User-facing notices.
const (
	noticeLoginRequired   = "Faça login para continuar."
	noticePremiumRequired = "Acesso Premium necessário."
	noticeAdminOnly       = "Acesso restrito ao administrador."
	noticeDenied          = "Acesso negado."
	noticeFillAll         = "Preencha todos os campos."
	noticeAccountCreated  = "Conta criada com sucesso!"
	noticeUserExists      = "Usuário já existe."
	noticeBadCredentials  = "Usuário ou senha incorretos."
	noticeExpired         = "Sua conta expirou."
	noticeLoggedIn        = "Login realizado com sucesso!"
	noticeLoggedOut       = "Você saiu da conta."
	noticeUserCreated     = "Usuário criado com sucesso!"
	noticeUserRemoved     = "Usuário removido."
	noticeSelfDelete      = "Você não pode remover a própria conta."
	noticeUserNotFound    = "Usuário não encontrado."
	noticeChannelNotFound = "Canal não encontrado."
	noticeReloaded        = "Lista atualizada: %d canais."
	noticeReloadFailed    = "Não foi possível atualizar a lista. Exibindo a última versão disponível."
	noticeReloadBusy      = "Atualização já em andamento."
	noticeTooManyAttempts = "Muitas tentativas. Tente novamente em instantes."
	noticeInternal        = "Algo deu errado. Tente novamente."
)

// fail turns an error from the account service into a notice and a redirect.
// back is where recoverable input errors send the user.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	switch {
	case errors.Is(err, models.ErrExpired):
		if endErr := s.sessions.End(w, r); endErr != nil {
			s.logger.Warn("end session", "error", endErr)
		}
		s.redirect(w, r, "/login", noticeExpired)
	case errors.Is(err, models.ErrUnauthorized):
		s.redirect(w, r, "/channels", noticeDenied)
	case errors.Is(err, models.ErrDuplicateUser):
		s.redirect(w, r, back, noticeUserExists)
	case errors.Is(err, models.ErrInvalidInput):
		s.redirect(w, r, back, noticeFillAll)
	case errors.Is(err, models.ErrAuthFailure):
		s.redirect(w, r, back, noticeBadCredentials)
	default:
		s.logger.Error("request failed", append(s.logAttrs(r), "error", err)...)
		s.redirect(w, r, back, noticeInternal)
	}
}
