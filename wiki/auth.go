package wiki

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/scheduler"
)

// Login result codes returned by action=login
const (
	LoginSuccess   = "Success"
	LoginNeedToken = "NeedToken"
)

type loginState int

const (
	loginInit loginState = iota
	loginAwaitingToken
	loginDone
)

type loginFlow struct {
	*flow[string]
	username string
	password string
	state    loginState
}

type loginResult struct {
	Result     string `json:"result"`
	Token      string `json:"token"`
	LgUsername string `json:"lgusername"`
	Reason     string `json:"reason"`
}

// Login authenticates the session. A "NeedToken" reply is answered once with
// the issued token, as a priority request; the second reply is final. The
// handle resolves with the canonical user name.
func (b *Bot) Login(username, password string, opts ...CallOption) *scheduler.Future[string] {
	lf := &loginFlow{
		flow:     newFlow[string](b),
		username: username,
		password: password,
		state:    loginInit,
	}
	lf.request("", applyCallOptions(opts).priority)
	return lf.out
}

func (l *loginFlow) request(token string, priority bool) {
	params := url.Values{}
	params.Set("action", "login")
	params.Set("lgname", l.username)
	params.Set("lgpassword", l.password)
	if token != "" {
		params.Set("lgtoken", token)
	}
	l.send(http.MethodPost, params, priority, l.handle)
}

func (l *loginFlow) handle(resp *Response) {
	var res loginResult
	if err := resp.Decode("login", &res); err != nil {
		metrics.LoginAttempts.WithLabelValues("decode_error").Inc()
		l.reject(err)
		return
	}

	switch {
	case res.Result == LoginSuccess:
		l.state = loginDone
		metrics.LoginAttempts.WithLabelValues(res.Result).Inc()
		l.bot.logger.Info("Login succeeded", "user", res.LgUsername)
		l.resolve(res.LgUsername)

	case res.Result == LoginNeedToken && l.state == loginInit:
		if res.Token == "" {
			metrics.LoginAttempts.WithLabelValues("notoken").Inc()
			l.reject(&ProtocolError{Op: "login", Code: res.Result, Info: "no login token in response"})
			return
		}
		l.state = loginAwaitingToken
		l.bot.logger.Debug("Login needs token, retrying", "user", l.username)
		l.request(res.Token, true)

	default:
		l.state = loginDone
		metrics.LoginAttempts.WithLabelValues(res.Result).Inc()
		l.bot.logger.Warn("Login failed", "user", l.username, "result", res.Result, "reason", res.Reason)
		l.reject(&ProtocolError{Op: "login", Code: res.Result, Info: res.Reason})
	}
}

// Logout ends the session
func (b *Bot) Logout(opts ...CallOption) *scheduler.Future[struct{}] {
	params := url.Values{}
	params.Set("action", "logout")
	return call(b, http.MethodPost, params, applyCallOptions(opts).priority, func(*Response) (struct{}, error) {
		b.logger.Info("Logged out")
		return struct{}{}, nil
	})
}

// UserInfo asks which account the session is acting as
func (b *Bot) UserInfo(opts ...CallOption) *scheduler.Future[UserInfo] {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	return call(b, http.MethodGet, params, applyCallOptions(opts).priority, parseUserInfo)
}

// Name resolves with the session's user name
func (b *Bot) Name(opts ...CallOption) *scheduler.Future[string] {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	return call(b, http.MethodGet, params, applyCallOptions(opts).priority, func(resp *Response) (string, error) {
		info, err := parseUserInfo(resp)
		return info.Name, err
	})
}

// WhoAmI is an alias of Name
func (b *Bot) WhoAmI(opts ...CallOption) *scheduler.Future[string] {
	return b.Name(opts...)
}

func parseUserInfo(resp *Response) (UserInfo, error) {
	var query struct {
		UserInfo *struct {
			ID   int             `json:"id"`
			Name string          `json:"name"`
			Anon json.RawMessage `json:"anon"`
		} `json:"userinfo"`
	}
	if err := resp.Decode("query", &query); err != nil {
		return UserInfo{}, err
	}
	if query.UserInfo == nil {
		return UserInfo{}, &DecodeError{Err: errMissing("query.userinfo")}
	}
	u := query.UserInfo
	return UserInfo{
		ID:        u.ID,
		Name:      u.Name,
		Anonymous: u.Anon != nil || u.ID == 0,
	}, nil
}
