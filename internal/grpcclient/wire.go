package grpcclient

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/smile-overlay/internal/smile"
)

const (
	serviceName  = "smile.landmark.v1.LandmarkService"
	detectMethod = "/" + serviceName + "/Detect"

	faceKey      = "face"
	boxKey       = "boundingBox"
	outerLipsKey = "outerLips"
	innerLipsKey = "innerLips"
)

func observationToStruct(obs *smile.FaceObservation) *structpb.Struct {
	if obs == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{faceKey: structpb.NewNullValue()}}
	}
	box := &structpb.Struct{Fields: map[string]*structpb.Value{
		"originX": structpb.NewNumberValue(obs.Box.OriginX),
		"originY": structpb.NewNumberValue(obs.Box.OriginY),
		"width":   structpb.NewNumberValue(obs.Box.Width),
		"height":  structpb.NewNumberValue(obs.Box.Height),
	}}
	face := &structpb.Struct{Fields: map[string]*structpb.Value{
		boxKey:       structpb.NewStructValue(box),
		outerLipsKey: regionToValue(obs.OuterLips),
		innerLipsKey: regionToValue(obs.InnerLips),
	}}
	return &structpb.Struct{Fields: map[string]*structpb.Value{faceKey: structpb.NewStructValue(face)}}
}

func regionToValue(region smile.LandmarkRegion) *structpb.Value {
	if region == nil {
		return structpb.NewNullValue()
	}
	values := make([]*structpb.Value, 0, len(region))
	for _, p := range region {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"x": structpb.NewNumberValue(p.X),
			"y": structpb.NewNumberValue(p.Y),
		}}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func observationFromStruct(resp *structpb.Struct) (*smile.FaceObservation, error) {
	faceValue, ok := resp.GetFields()[faceKey]
	if !ok || isNull(faceValue) {
		return nil, nil
	}
	face := faceValue.GetStructValue()
	if face == nil {
		return nil, fmt.Errorf("%s: expected object", faceKey)
	}

	boxStruct := face.GetFields()[boxKey].GetStructValue()
	if boxStruct == nil {
		return nil, fmt.Errorf("%s: missing object", boxKey)
	}
	var (
		obs smile.FaceObservation
		err error
	)
	if obs.Box.OriginX, err = number(boxStruct, "originX"); err != nil {
		return nil, err
	}
	if obs.Box.OriginY, err = number(boxStruct, "originY"); err != nil {
		return nil, err
	}
	if obs.Box.Width, err = number(boxStruct, "width"); err != nil {
		return nil, err
	}
	if obs.Box.Height, err = number(boxStruct, "height"); err != nil {
		return nil, err
	}

	if obs.OuterLips, err = regionFromValue(outerLipsKey, face.GetFields()[outerLipsKey]); err != nil {
		return nil, err
	}
	if obs.InnerLips, err = regionFromValue(innerLipsKey, face.GetFields()[innerLipsKey]); err != nil {
		return nil, err
	}
	return &obs, nil
}

func regionFromValue(name string, v *structpb.Value) (smile.LandmarkRegion, error) {
	if v == nil || isNull(v) {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s: expected list", name)
	}
	region := make(smile.LandmarkRegion, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		point := item.GetStructValue()
		if point == nil {
			return nil, fmt.Errorf("%s[%d]: expected object", name, i)
		}
		x, err := number(point, "x")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		y, err := number(point, "y")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		region = append(region, smile.NormalizedPoint{X: x, Y: y})
	}
	return region, nil
}

func number(s *structpb.Struct, key string) (float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%q is not a number", key)
	}
	return n.NumberValue, nil
}

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}
