package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"interviewmic/internal/audio"
	"interviewmic/internal/config"
	"interviewmic/internal/gate"
	"interviewmic/internal/logging"
	"interviewmic/internal/ports"
	"interviewmic/internal/providers/deepgram"
	"interviewmic/internal/registration"
	"interviewmic/internal/speech"
	"interviewmic/internal/usecase"
	"interviewmic/internal/volume"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Gate       *gate.Gate
	Config     config.Config
	Logger     *zap.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, trigger ports.TriggerControl) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return Services{}, fmt.Errorf("failed to build logger: %w", err)
	}

	audioConfig := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}
	microphone := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)

	speechStream := speech.NewStream(
		microphone,
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		speech.Config{
			Audio: audioConfig,
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize: cfg.Session.ChunkSize,
		},
		logger,
	)

	volumeMonitor := volume.NewMonitor(
		microphone,
		volume.Config{Audio: audioConfig, Interval: cfg.Session.VolumeInterval},
		logger,
	)

	interlock := gate.NewInterlock(trigger)
	controller := usecase.NewSessionController(
		registration.NewClient(registration.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.RegistrationTimeout,
		}, logger),
		speechStream,
		volumeMonitor,
		interlock.Track(eventSink),
		logger,
		usecase.Config{StartTimeout: cfg.Session.StartTimeout},
	)

	logger.Info("services ready",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("model", cfg.Deepgram.Model),
		zap.String("audio_input", cfg.Audio.InputDevice),
	)

	return Services{
		Controller: controller,
		Gate:       gate.New(interlock),
		Config:     cfg,
		Logger:     logger,
	}, nil
}
