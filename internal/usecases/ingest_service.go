package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging_service/internal/entities"
	"messaging_service/internal/interfaces"
)

// IngestService sequences one message through the pipeline: resolve both
// parties, resolve the conversation joining them, deliver (outbound only),
// then record. It never touches identity or conversation state directly;
// all reads and writes go through the stores.
type IngestService struct {
	identities    interfaces.IdentityStore
	conversations interfaces.ConversationStore
	messages      interfaces.MessageStore
	delivery      interfaces.DeliverySender
	logger        *zap.SugaredLogger
}

func NewIngestService(
	identities interfaces.IdentityStore,
	conversations interfaces.ConversationStore,
	messages interfaces.MessageStore,
	delivery interfaces.DeliverySender,
	logger *zap.SugaredLogger,
) *IngestService {
	return &IngestService{
		identities:    identities,
		conversations: conversations,
		messages:      messages,
		delivery:      delivery,
		logger:        logger,
	}
}

// participants holds both resolved sides of one message.
type participants struct {
	customerCommID string
	contactCommID  string
	customerID     string
	contactID      string
}

// ProcessInbound records a message received from a contact. Returns the
// persisted message id.
func (s *IngestService) ProcessInbound(ctx context.Context, payload map[string]any, commType entities.CommMethodType) (string, error) {
	p, err := s.resolveParticipants(ctx, payload, entities.DirectionInbound, commType)
	if err != nil {
		return "", err
	}

	conversationID, err := s.conversations.ResolveConversation(ctx, p.customerID, p.contactID)
	if err != nil {
		return "", err
	}

	msg, err := buildMessage(payload, conversationID, p, entities.DirectionInbound, commType)
	if err != nil {
		return "", err
	}
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return "", err
	}

	s.logger.Infow("inbound message recorded",
		"message_id", msg.ID, "conversation_id", conversationID, "channel", commType)
	return msg.ID, nil
}

// ProcessOutbound delivers a message to the provider endpoint and records it.
// Delivery must succeed before anything is recorded: a message row always
// means "this was sent". Identity and conversation resolution precede
// delivery, so newly discovered contacts may persist even when the send fails.
func (s *IngestService) ProcessOutbound(ctx context.Context, payload map[string]any, commType entities.CommMethodType, endpoint string) (string, error) {
	p, err := s.resolveParticipants(ctx, payload, entities.DirectionOutbound, commType)
	if err != nil {
		return "", err
	}

	conversationID, err := s.conversations.ResolveConversation(ctx, p.customerID, p.contactID)
	if err != nil {
		return "", err
	}

	if !s.delivery.DeliverWithRetry(ctx, endpoint, payload) {
		return "", &entities.DeliveryFailedError{Endpoint: endpoint}
	}

	msg, err := buildMessage(payload, conversationID, p, entities.DirectionOutbound, commType)
	if err != nil {
		return "", err
	}
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return "", err
	}

	s.logger.Infow("outbound message sent and recorded",
		"message_id", msg.ID, "conversation_id", conversationID, "channel", commType)
	return msg.ID, nil
}

// resolveParticipants resolves the customer side from the provisioned comm
// methods and the contact side via find-or-create. Inbound messages address
// the customer in "to"; outbound messages originate from it in "from".
func (s *IngestService) resolveParticipants(ctx context.Context, payload map[string]any, direction entities.Direction, commType entities.CommMethodType) (participants, error) {
	from := stringField(payload, "from")
	to := stringField(payload, "to")

	customerAddr, contactAddr := to, from
	if direction == entities.DirectionOutbound {
		customerAddr, contactAddr = from, to
	}

	customerCommID, customerID, err := s.identities.ResolveCustomerCommMethod(ctx, commType, customerAddr)
	if err != nil {
		return participants{}, err
	}
	contactCommID, contactID, err := s.identities.ResolveOrCreateContactCommMethod(ctx, customerID, commType, contactAddr)
	if err != nil {
		return participants{}, err
	}

	return participants{
		customerCommID: customerCommID,
		contactCommID:  contactCommID,
		customerID:     customerID,
		contactID:      contactID,
	}, nil
}

// buildMessage constructs the immutable message row from a validated payload
// and the resolved identities.
func buildMessage(payload map[string]any, conversationID string, p participants, direction entities.Direction, commType entities.CommMethodType) (*entities.Message, error) {
	messageType, err := entities.ParseMessageType(stringField(payload, "type"))
	if err != nil {
		return nil, err
	}
	timestamp, err := entities.ParseTimestamp(stringField(payload, "timestamp"))
	if err != nil {
		return nil, err
	}

	// Phone channels correlate via messaging_provider_id, email via the
	// provider's xillio_id. Outbound payloads carry neither: the provider
	// has not assigned an id before the send.
	providerField := "messaging_provider_id"
	if commType == entities.CommMethodEmail {
		providerField = "xillio_id"
	}
	providerID := optionalString(payload, providerField)

	body := optionalString(payload, "body")

	var attachments *string
	if raw, ok := payload["attachments"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("serialize attachments: %w", err)
		}
		s := string(encoded)
		attachments = &s
	}

	msg := &entities.Message{
		ID:                  uuid.NewString(),
		ConversationID:      conversationID,
		MessagingProviderID: providerID,
		MessageType:         messageType,
		Body:                body,
		Attachments:         attachments,
		Timestamp:           timestamp,
	}
	if direction == entities.DirectionInbound {
		msg.FromContactCommID = &p.contactCommID
		msg.ToCustomerCommID = &p.customerCommID
	} else {
		msg.FromCustomerCommID = &p.customerCommID
		msg.ToContactCommID = &p.contactCommID
	}
	return msg, nil
}

func stringField(payload map[string]any, name string) string {
	s, _ := payload[name].(string)
	return s
}

func optionalString(payload map[string]any, name string) *string {
	if s, ok := payload[name].(string); ok {
		return &s
	}
	return nil
}
