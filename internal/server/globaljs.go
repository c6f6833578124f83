package server

import (
	"fmt"
	"net/http"
)

// handleGlobalJS serves the client script landing pages embed
func (s *Server) handleGlobalJS(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateGlobalScript(serverURL)))
}

// GenerateGlobalScript generates fg.js for the given server URL.
//
// A page opts in with <body data-fg-campaign="slug">. The script resolves the
// visitor, exposes the assignment as window.fg.assignment and a
// "fg:assigned" event, wires [data-fg-event] click tracking and
// <video data-fg-progress> watch progress, and reports page_leave when the
// page is hidden.
func GenerateGlobalScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';
  var body=document.body;
  var slug=body&&body.dataset.fgCampaign;
  var vid=localStorage.getItem('fg_vid');
  var fg=window.fg={assignment:null,track:track,progress:progress,resolve:resolve};

  function send(path,data){
    var payload=JSON.stringify(data);
    if(navigator.sendBeacon&&navigator.sendBeacon(S+path,payload))return;
    fetch(S+path,{method:'POST',body:payload,keepalive:true,credentials:'include'});
  }

  function track(e,p){
    if(!slug||!vid)return;
    var data={c:slug,vid:vid,e:e};
    if(p)data.p=p;
    send('/e',data);
  }

  var lastPct=-1;
  function progress(pct,t){
    if(!slug||!vid)return;
    // Only report when a new milestone may have been crossed
    var bucket=Math.floor(pct/25);
    if(bucket<=lastPct&&lastPct>=0)return;
    lastPct=bucket;
    send('/p',{c:slug,vid:vid,pct:Math.min(100,pct),t:t});
  }

  function resolve(s){
    slug=s||slug;
    if(!slug)return Promise.resolve(null);
    var q=new URLSearchParams(location.search);
    var p=new URLSearchParams();
    if(vid)p.set('vid',vid);
    ['utm_source','utm_medium','utm_campaign','utm_content','utm_term'].forEach(function(k){
      if(q.get(k))p.set(k,q.get(k));
    });
    if(document.referrer)p.set('ref',document.referrer);
    return fetch(S+'/r/'+encodeURIComponent(slug)+'?'+p.toString(),{credentials:'include'})
      .then(function(r){return r.ok?r.json():null;})
      .then(function(a){
        if(!a)return null;
        vid=a.token;
        localStorage.setItem('fg_vid',vid);
        fg.assignment=a;
        document.dispatchEvent(new CustomEvent('fg:assigned',{detail:a}));
        return a;
      });
  }

  if(!slug)return;

  resolve().then(function(){
    document.querySelectorAll('[data-fg-event]').forEach(function(el){
      el.addEventListener('click',function(){track(el.dataset.fgEvent);});
    });

    document.querySelectorAll('video[data-fg-progress]').forEach(function(v){
      v.addEventListener('timeupdate',function(){
        if(!v.duration)return;
        progress(v.currentTime/v.duration*100,Math.floor(v.currentTime));
      });
      v.addEventListener('ended',function(){progress(100,Math.floor(v.duration));});
    });
  });

  document.addEventListener('visibilitychange',function(){
    if(document.visibilityState==='hidden')track('page_leave');
  });
})();`, serverURL)
}
