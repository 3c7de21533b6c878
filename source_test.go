package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type EnvelopeSuite struct {
	suite.Suite
	pipeline *Pipeline
}

func (s *EnvelopeSuite) SetupTest() {
	var err error
	s.pipeline, err = New()
	s.Require().NoError(err)

	s.pipeline.AddSource(EventsEnvelope())
	s.pipeline.AddSource(SNSEnvelope())
	s.pipeline.AddSource(SQSEnvelope())
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) TestEventsEnvelope() {
	raw := []byte(`{"events": [
		{"name": "user:created", "id": 1},
		{"name": "order:placed", "id": 8}
	]}`)

	result, err := s.pipeline.Process(context.Background(), raw)

	s.Require().NoError(err)
	s.Require().Len(result.Dispatches, 2)
	s.Assert().Equal("user", result.Dispatches[0].Category)
	s.Assert().Equal("order", result.Dispatches[1].Category)
}

func (s *EnvelopeSuite) TestSNSEnvelope() {
	raw := []byte(`{"Records": [
		{"Sns": {"Message": "{\"name\": \"user:created\", \"id\": 1}"}},
		{"Sns": {"Message": "{\"name\": \"user:updated\", \"id\": 2}"}}
	]}`)

	result, err := s.pipeline.Process(context.Background(), raw)

	s.Require().NoError(err)
	s.Require().Len(result.Dispatches, 1)
	s.Assert().Equal("user", result.Dispatches[0].Category)
	s.Assert().Len(result.Dispatches[0].Records, 2)
}

func (s *EnvelopeSuite) TestSQSEnvelope() {
	raw := []byte(`{"Records": [
		{"eventSource": "aws:sqs", "body": "{\"name\": \"order:placed\", \"id\": 8}"}
	]}`)

	result, err := s.pipeline.Process(context.Background(), raw)

	s.Require().NoError(err)
	s.Require().Len(result.Dispatches, 1)
	s.Assert().Equal("order", result.Dispatches[0].Category)
}

func (s *EnvelopeSuite) TestMissingPayloadBecomesMalformed() {
	raw := []byte(`{"Records": [
		{"Sns": {"Message": "{\"name\": \"user:created\", \"id\": 1}"}},
		{"Sns": {}}
	]}`)

	result, err := s.pipeline.Process(context.Background(), raw)

	s.Require().NoError(err)
	s.Require().Len(result.Rejected, 1)
	s.Assert().Equal(ReasonMalformed, result.Rejected[0].Reason)
	s.Require().Len(result.Dispatches, 1)
	s.Assert().Len(result.Dispatches[0].Records, 1)
}

func (s *EnvelopeSuite) TestNonObjectElementBecomesMalformed() {
	raw := []byte(`{"events": [{"name": "user:created", "id": 1}, "junk", 3]}`)

	result, err := s.pipeline.Process(context.Background(), raw)

	s.Require().NoError(err)
	s.Assert().Len(result.Rejected, 2)
	s.Require().Len(result.Dispatches, 1)
}

func (s *EnvelopeSuite) TestInvalidJSON() {
	_, err := s.pipeline.Process(context.Background(), []byte(`{not json}`))

	s.Assert().ErrorIs(err, ErrInvalidJSON)
}

func (s *EnvelopeSuite) TestNoSourceMatches() {
	_, err := s.pipeline.Process(context.Background(), []byte(`{"unknown": true}`))

	s.Assert().ErrorIs(err, ErrNoSource)
}

func (s *EnvelopeSuite) TestEnvelopePathMustBeArray() {
	p, err := New()
	s.Require().NoError(err)
	p.AddSource(Envelope("bad", "events", HasFields("events")))

	_, err = p.Process(context.Background(), []byte(`{"events": "not an array"}`))

	s.Assert().Error(err)
}

func (s *EnvelopeSuite) TestSourcesMatchedInRegistrationOrder() {
	p, err := New()
	s.Require().NoError(err)

	var matched string
	p.AddSource(SourceFunc("first", HasFields("missing"), func(raw []byte) ([]any, error) {
		matched = "first"
		return nil, nil
	}))
	p.AddSource(SourceFunc("second", HasFields("events"), func(raw []byte) ([]any, error) {
		matched = "second"
		return nil, nil
	}))

	_, err = p.Process(context.Background(), []byte(`{"events": []}`))

	s.Require().NoError(err)
	s.Assert().Equal("second", matched)
}

func (s *EnvelopeSuite) TestRepeatedProcessUsesLastMatch() {
	raw := []byte(`{"events": [{"name": "user:created", "id": 1}]}`)

	for range 3 {
		_, err := s.pipeline.Process(context.Background(), raw)
		s.Require().NoError(err)
	}

	last, ok := s.pipeline.lastMatch.Load().(string)
	s.Require().True(ok)
	s.Assert().Equal("events", last)
}
