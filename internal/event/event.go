// A collection of event names and common methods used to handle the events.
// Every ingestion and sync service dispatches on this bus; listeners (such
// as a UI) subscribe to observe library mutations without being coupled to
// the services performing them.
package event

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/pkg/logger"
)

var log = logger.Get("Event")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	// MediaError is the payload shape for MEDIA_ERROR events. Path holds
	// the file path or feed URL of the item that failed; Err may be nil
	// when the failure was a parse rejection rather than an exception.
	MediaError struct {
		Path      string
		MediaType media.Type
		Err       error
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	// MEDIA_ADDED carries a pointer to the newly persisted entity
	// (artist, album, track, TV show, video, podcast show or episode).
	MEDIA_ADDED   Event = "media:added"
	MEDIA_UPDATED Event = "media:updated"
	MEDIA_REMOVED Event = "media:removed"

	// MEDIA_ERROR carries a MediaError payload describing a per-item
	// ingestion or sync failure which did NOT abort the surrounding scan.
	MEDIA_ERROR Event = "media:error"

	SCAN_STARTED  Event = "scan:started"
	SCAN_COMPLETE Event = "scan:complete"
)

func New() EventCoordinator {
	return &eventHandler{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel takes an event type and a channel and will send Event messages on
// the channel any time a Dispatch for the provided event occurs.
// This method can be used multiple times for different events on the same channel.
//
// If the channel is BLOCKED when the event bus attempts to send the message on the handler channel,
// then the thread dispatching the event will also be BLOCKED. It is recomended to buffer the handler channels
// appropiately to avoid dispatcher-side blocking.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// RegisterHandlerFunction takes an event type and a handler method which will be stored
// and called with the payload for the event whenever it is dispatched.
// The handle provided should be guaranteed to return quickly, else other threads calling
// Dispatch on this event bus will be blocked.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction accepts an Event and a HandlerMethod which will be stored and
// called inside of a goroutine when the event is handled.
// The speed at which this handle runs is not important to the event bus, unlike RegisterHandlerFunction.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

// registerHandlerMethod is the internal implementation for both RegisterHandlerFunction and
// RegisterAsyncHandlerFunction.
func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch takes an event type and a payload and delivers the payload to every
// handler registered for the event. Delivery is synchronous: handlers are
// invoked on the dispatching goroutine, immediately, in registration order
// (except handlers registered as async, which run in their own goroutine).
// Note that this method WILL block if a synchronous handler function is
// blocking, or if channel handlers are blocked.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := handler.validatePayload(event, payload); err != nil {
		log.Emit(logger.FATAL, "Dispatch for event %v FAILED validation: %v\n", event, err)
		return
	}

	if handles, ok := handler.fnHandlers[event]; ok {
		for _, handle := range handles {
			if handle.async {
				go handle.handle(event, payload)
			} else {
				handle.handle(event, payload)
			}
		}
	}

	if handles, ok := handler.chanHandlers[event]; ok {
		payload := HandlerEvent{event, payload}
		for _, handle := range handles {
			handle <- payload
		}
	}
}

// validatePayload ensures that the payload provided is valid for the event specified. An error
// will be returned if the payload is not valid, and the event should not be sent to the registered
// handlers in this case.
func (handler *eventHandler) validatePayload(event Event, payload Payload) error {
	switch event {
	case MEDIA_ADDED, MEDIA_UPDATED, MEDIA_REMOVED:
		switch payload.(type) {
		case *media.Artist, *media.Album, *media.Track,
			*media.TVShow, *media.Video,
			*media.PodcastShow, *media.PodcastEpisode:
			return nil
		}

		return fmt.Errorf("illegal payload (type %s) for %s event. Expected a library entity pointer", payloadTypeName(payload), event)
	case MEDIA_ERROR:
		if _, ok := payload.(MediaError); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected MediaError payload", payloadTypeName(payload), event)
		}

		return nil
	case SCAN_STARTED, SCAN_COMPLETE:
		if _, ok := payload.(uuid.UUID); !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected uuid.UUID payload", payloadTypeName(payload), event)
		}

		return nil
	}

	return errors.New("event type not recognized for validation")
}

func payloadTypeName(payload Payload) string {
	if t := reflect.TypeOf(payload); t != nil {
		return t.String()
	}

	return "Nil"
}
