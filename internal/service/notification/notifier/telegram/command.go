package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	apperrors "github.com/darkkaiser/bundle-watcher/internal/pkg/errors"
	"github.com/darkkaiser/bundle-watcher/internal/service/contract"
	applog "github.com/darkkaiser/bundle-watcher/pkg/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iancoleman/strcase"
)

const (
	// botCommandPrefix 텔레그램 메시지가 '명령어'임을 식별하는 접두어(Prefix)입니다.
	//
	// 텔레그램 봇 API 규약에 따라 모든 명령어는 이 슬래시('/') 문자로 시작해야 합니다.
	// 예: "/bundle", "/help"
	botCommandPrefix = "/"
)

// botCommand 텔레그램 봇이 인식하고 처리할 수 있는 개별 명령어를 정의합니다.
type botCommand struct {
	// name 사용자가 채팅창에 입력하는 실제 명령어 텍스트입니다. (접두어 '/' 제외)
	// 예: "bundle" -> 사용자는 "/bundle"로 입력
	name string

	// title 명령어 목록 등에서 보여질 짧고 직관적인 제목입니다.
	title string

	// description 명령어의 기능에 대한 상세한 설명입니다.
	// "/help" 명령어 호출 시 사용자에게 안내되는 텍스트로 사용됩니다.
	description string

	// handler 명령어가 입력되었을 때 실행할 처리 함수입니다.
	// args에는 명령어 이름을 제외한 나머지 인자들이 공백 기준으로 분리되어 전달됩니다.
	handler func(ctx context.Context, args []string, message *tgbotapi.Message)
}

// registerBotCommands 봇이 지원하는 모든 명령어를 등록하고 이름 기반 조회 인덱스를 구성합니다.
//
// 명령어 이름은 식별자를 snake_case로 변환하여 생성합니다.
// 예: "Bundle" -> "/bundle", "Help" -> "/help"
func (n *telegramNotifier) registerBotCommands() {
	n.botCommands = []botCommand{
		{
			name:        strcase.ToSnake("Bundle"),
			title:       "번들 조회",
			description: "지정한 번들의 상세 정보를 조회합니다. (사용법: /bundle [번들ID], ID 생략 시 기본 번들 조회)",
			handler:     n.handleBundleCommand,
		},
		{
			name:        strcase.ToSnake("Help"),
			title:       "도움말",
			description: "입력 가능한 명령어 목록을 표시합니다.",
			handler:     n.handleHelpCommand,
		},
	}

	n.botCommandsByName = make(map[string]botCommand, len(n.botCommands))
	for _, command := range n.botCommands {
		n.botCommandsByName[command.name] = command
	}
}

// dispatchCommand 사용자가 보낸 명령어 메시지를 분석하여 적절한 처리 로직으로 연결하는 라우팅(Routing) 메서드입니다.
//
// 이 메서드는 다음 순서로 동작합니다:
//  1. 명령어 처리 전체에 타임아웃을 설정합니다. (고루틴 무한 대기 방지)
//  2. 메시지의 유효성을 검증합니다. (텍스트 존재 여부, 명령어 포맷 확인)
//  3. 명령어를 파싱하여 '명령어 이름'과 '인자'를 분리합니다.
//  4. 등록된 명령어 목록(botCommandsByName)에서 대응하는 핸들러를 찾아 실행합니다.
func (n *telegramNotifier) dispatchCommand(serviceStopCtx context.Context, message *tgbotapi.Message) {
	// 1. 안전한 실행 시간 보장
	// 업스트림 API 지연 등 외부 요인으로 인해 명령어 처리 고루틴이 무한 대기하는 것을 방지합니다.
	// 부모 컨텍스트가 취소되면(서비스 종료 등) 이 작업도 즉시 중단됩니다.
	ctx, cancel := context.WithTimeout(serviceStopCtx, commandTimeout)
	defer cancel()

	// 2. 패닉 복구
	// 명령어 처리 로직 중 예상치 못한 런타임 오류(Panic)가 발생하더라도,
	// 전체 봇 서비스(수신 루프)가 중단되지 않도록 여기서 패닉을 포착하고 로그를 남깁니다.
	defer func() {
		if r := recover(); r != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"notifier_id": n.ID(),
				"chat_id":     n.chatID,
				"command":     message.Text, // 입력값: 패닉을 유발한 명령어
				"panic":       r,
			}).Error("텔레그램 핸들러 패닉 복구: 명령어 처리 중 예기치 않은 오류가 발생했습니다 (서비스 유지됨)")
		}
	}()

	// 3. 명령어 유효성 검사
	// 텔레그램의 모든 봇 명령어는 '/' 접두어로 시작해야 합니다.
	if len(message.Text) == 0 || !strings.HasPrefix(message.Text, botCommandPrefix) {
		n.replyUnknownCommand(ctx, message)
		return
	}

	// 4. 명령어 파싱
	// 접두어를 제거한 후 공백 기준으로 분리하여 명령어 이름과 인자를 추출합니다.
	// 예: "/bundle 12345" -> 이름: "bundle", 인자: ["12345"]
	fields := strings.Fields(strings.TrimPrefix(message.Text, botCommandPrefix))
	if len(fields) == 0 {
		n.replyUnknownCommand(ctx, message)
		return
	}

	commandName := fields[0]
	args := fields[1:]

	// 그룹 채팅에서는 명령어 뒤에 봇 이름이 붙을 수 있습니다. (예: "/bundle@my_bot")
	if at := strings.Index(commandName, "@"); at >= 0 {
		commandName = commandName[:at]
	}

	// 5. 명령어 라우팅
	if command, found := n.botCommandsByName[commandName]; found {
		command.handler(ctx, args, message)
		return
	}

	// 처리할 수 없는 명령어인 경우, 사용자에게 안내 메시지를 보냅니다.
	n.replyUnknownCommand(ctx, message)
}

// handleBundleCommand '/bundle [번들ID]' 명령어를 처리합니다.
//
// 처리 흐름:
//  1. 인자로 전달된 번들 ID를 파싱합니다. ID가 생략된 경우 설정된 기본 번들 ID를 사용합니다.
//  2. Resolver를 통해 번들 상세 정보를 조회하여 알림 메시지로 구성합니다.
//  3. 조회 결과(성공/실패)를 요청자가 속한 채팅방으로만 회신합니다. (브로드캐스트 금지)
//
// 주의: 이 명령어는 조회 전용이며, 신규 번들 감시 상태(seen-set)에는 어떠한 영향도 주지 않습니다.
func (n *telegramNotifier) handleBundleCommand(ctx context.Context, args []string, message *tgbotapi.Message) {
	// 1. 번들 ID 결정: 인자가 없으면 기본 번들 ID로 대체합니다.
	bundleID := n.defaultBundleID
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			n.replyToChat(ctx, message.Chat.ID, fmt.Sprintf(
				"입력하신 번들 ID '%s'는 올바른 형식이 아닙니다.\n\n"+
					"번들 ID는 양의 정수여야 합니다. (예: %s%s 12345)",
				html.EscapeString(args[0]), botCommandPrefix, n.botCommands[0].name,
			))
			return
		}
		bundleID = id
	}

	// 2. 번들 상세 정보 조회 및 알림 메시지 구성
	notification, err := n.resolver.Resolve(ctx, bundleID)
	if err != nil {
		// 존재하지 않는 번들: 사용자에게 명확한 안내를 회신합니다.
		if apperrors.Is(err, apperrors.NotFound) {
			n.replyToChat(ctx, message.Chat.ID, fmt.Sprintf("번들(ID: %d)을 찾을 수 없습니다.", bundleID))
			return
		}

		// 그 외 조회 실패: 짧은 원인과 함께 일반 실패 안내를 회신합니다.
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
			"chat_id":     message.Chat.ID,
			"bundle_id":   bundleID,
			"error":       err,
		}).Error("번들 조회 실패: /bundle 명령어 처리 중 오류가 발생했습니다")

		n.replyToChat(ctx, message.Chat.ID, fmt.Sprintf(
			"번들(ID: %d) 조회 중 오류가 발생했습니다.\n\n원인: %s",
			bundleID, html.EscapeString(err.Error()),
		))
		return
	}

	// 3. 조회 결과 회신
	// 수신 대상을 요청자의 채팅방으로 명시하여, 브로드캐스트 채팅방이 아닌 요청자에게만 회신합니다.
	if err := n.TrySend(ctx, notification.WithChatID(message.Chat.ID)); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
			"chat_id":     message.Chat.ID,
			"bundle_id":   bundleID,
			"error":       err,
		}).Warn("텔레그램 알림 누락: 번들 조회 결과 회신이 차단되었습니다 (Queue Full 또는 Timeout)")
	}
}

// handleHelpCommand 현재 봇에 등록된 모든 사용 가능한 명령어 목록을 포맷팅하여 사용자에게 도움말 메시지로 전송합니다.
func (n *telegramNotifier) handleHelpCommand(ctx context.Context, _ []string, message *tgbotapi.Message) {
	helpMessage := "입력 가능한 명령어는 아래와 같습니다:\n\n"
	for i, command := range n.botCommands {
		if i != 0 {
			helpMessage += "\n\n" // 명령어 간 줄바꿈
		}
		helpMessage += fmt.Sprintf("%s%s\n%s", botCommandPrefix, command.name, command.description)
	}

	n.replyToChat(ctx, message.Chat.ID, helpMessage)
}

// replyUnknownCommand 등록되지 않았거나 잘못된 명령어가 입력되었을 때, 올바른 사용법을 안내하는 메시지를 전송합니다.
func (n *telegramNotifier) replyUnknownCommand(ctx context.Context, message *tgbotapi.Message) {
	// 텔레그램 메시지는 HTML 모드로 전송되므로, 사용자 입력값에 포함된 특수문자(<, > 등)가 HTML 태그로 오인될 수 있습니다.
	// 이로 인해 메시지 형식이 깨지거나 전송이 실패하는 것을 방지하기 위해, 사용자 입력값은 반드시 이스케이프 처리하여 안전하게 변환해야 합니다.
	n.replyToChat(ctx, message.Chat.ID, fmt.Sprintf(
		"입력하신 명령어 '%s'는 등록되지 않은 명령어입니다.\n\n"+
			"사용 가능한 명령어 목록을 확인하시려면 '%shelp'를 입력해 주세요.",
		html.EscapeString(message.Text),
		botCommandPrefix,
	))
}

// replyToChat 지정된 채팅방으로 안내 메시지를 회신합니다.
//
// 봇 명령어에 대한 응답은 유실이 허용되는 부가 정보이므로, 대기열이 가득 찬 경우
// 대기하지 않고 즉시 포기(TrySend)하며 경고 로그만 남깁니다.
func (n *telegramNotifier) replyToChat(ctx context.Context, chatID int64, message string) {
	if err := n.TrySend(ctx, contract.NewNotification(message).WithChatID(chatID)); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
			"chat_id":     chatID,
			"error":       err,
		}).Warn("텔레그램 알림 누락: 명령어 안내 메시지 전송이 차단되었습니다 (Queue Full 또는 Timeout)")
	}
}
